package call

import (
	"context"
	"sync"
	"time"

	"roomchat/internal/errors"
	"roomchat/internal/media"
	"roomchat/internal/metrics"
	"roomchat/internal/models"
	"roomchat/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	metricStarts        = "call_start_total"
	metricStartFailures = "call_start_failures_total"
	metricEnds          = "call_end_total"
	metricAcquire       = "device_acquire_duration"
	metricActive        = "call_active"
)

// State is the renderable view of a call session
type State struct {
	Mode       models.CallMode `json:"mode"`
	Label      string          `json:"label"`
	Muted      bool            `json:"muted"`
	CameraOn   bool            `json:"cameraOn"`
	HasVideo   bool            `json:"hasVideo"`
	Error      string          `json:"error,omitempty"`
	Connecting bool            `json:"connecting"`
}

// Machine drives the idle/audio/video lifecycle of one call session. It is
// the only owner of the media controller's stream.
type Machine struct {
	mu       sync.Mutex
	media    *media.Controller
	mode     models.CallMode
	muted    bool
	cameraOn bool
	lastErr  string

	// pending acquisitions by attempt number
	inflight map[uint64]context.CancelFunc
	attempts uint64

	logger  *logrus.Logger
	errLog  *errors.Logger
	metrics *metrics.Registry
}

// NewMachine creates an idle machine. A nil registry records into the global
// metrics registry.
func NewMachine(controller *media.Controller, logger *logrus.Logger, registry *metrics.Registry) *Machine {
	if logger == nil {
		logger = logrus.New()
	}
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	return &Machine{
		media:    controller,
		mode:     models.CallModeIdle,
		cameraOn: true,
		inflight: make(map[uint64]context.CancelFunc),
		logger:   logger,
		errLog:   errors.WrapLogger(logger),
		metrics:  registry,
	}
}

// StartAudio acquires a microphone stream and enters audio mode
func (m *Machine) StartAudio(ctx context.Context) error {
	return m.Begin(ctx, models.CallModeAudio).Run()
}

// StartVideo acquires a microphone and camera stream and enters video mode
func (m *Machine) StartVideo(ctx context.Context) error {
	return m.Begin(ctx, models.CallModeVideo).Run()
}

// Attempt is a registered call start. EndCall cancels it even before Run
// has reached the device.
type Attempt struct {
	m      *Machine
	mode   models.CallMode
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Begin registers a start attempt without touching the devices. Every Attempt
// must be Run exactly once.
func (m *Machine) Begin(ctx context.Context, mode models.CallMode) *Attempt {
	attemptCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastErr = ""
	m.attempts++
	m.inflight[m.attempts] = cancel
	return &Attempt{m: m, mode: mode, id: m.attempts, ctx: attemptCtx, cancel: cancel}
}

// Run performs the device acquisition and commits the call unless the attempt
// was cancelled or superseded meanwhile.
func (a *Attempt) Run() error {
	defer a.cancel()
	m, mode := a.m, a.mode

	spanCtx, span := tracing.StartSpan(a.ctx, "call.acquire",
		attribute.String("call.mode", string(mode)),
		attribute.Int64("call.attempt", int64(a.id)),
	)
	defer span.End()

	m.metrics.IncrementCounter(metricStarts, map[string]string{"mode": string(mode)}, "Call start attempts")

	var (
		handle media.Handle
		err    error
	)
	if ctxErr := a.ctx.Err(); ctxErr != nil {
		err = errors.NewAcquireCancelledError(ctxErr)
	} else {
		started := time.Now()
		handle, err = m.media.AcquireHandle(spanCtx, true, mode == models.CallModeVideo)
		m.metrics.RecordTimer(metricAcquire, time.Since(started), map[string]string{"mode": string(mode)}, "Time spent waiting for device capture")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, a.id)

	if err == nil && a.ctx.Err() != nil {
		// torn down between capture and commit; the teardown released the stream
		err = errors.NewAcquireCancelledError(a.ctx.Err())
	}
	if err == nil {
		if current, ok := m.media.Current(); !ok || current.StreamID != handle.StreamID {
			err = errors.NewAcquireCancelledError(nil).WithContext("reason", "superseded")
		}
	}

	if err != nil {
		return m.failLocked(spanCtx, mode, err)
	}

	m.mode = mode
	m.muted = false
	m.cameraOn = mode == models.CallModeVideo
	m.lastErr = ""
	m.metrics.SetGauge(metricActive, 1, nil, "Whether a call is active")
	tracing.SetSpanStatus(spanCtx, codes.Ok, "")

	m.logger.WithFields(logrus.Fields{
		"mode":      mode,
		"stream_id": handle.StreamID,
		"attempt":   a.id,
	}).Info("Call started")
	return nil
}

// failLocked records a failed start. Cancelled attempts leave no error text
// behind since the call they belonged to is already gone.
func (m *Machine) failLocked(ctx context.Context, mode models.CallMode, err error) error {
	appErr := media.Classify(err)
	fields := logrus.Fields{"mode": mode}

	tracing.AddSpanAttributes(ctx, attribute.String("error.code", string(appErr.Code)))

	if appErr.Code == errors.ErrCodeAcquireCancelled {
		m.errLog.WithError(appErr).WithFields(fields).Debug("Call start abandoned")
		return appErr
	}

	m.lastErr = errors.GetUserMessage(appErr)
	tracing.RecordError(ctx, appErr)
	m.metrics.IncrementCounter(metricStartFailures, map[string]string{"code": string(appErr.Code)}, "Failed call starts")
	m.errLog.LogWarn(appErr, "Call start failed", fields)
	return appErr
}

// EndCall tears down the call, including acquisitions still in flight. It
// always succeeds.
func (m *Machine) EndCall() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for attempt, cancel := range m.inflight {
		cancel()
		delete(m.inflight, attempt)
	}
	m.media.Release()

	wasActive := m.mode != models.CallModeIdle
	m.mode = models.CallModeIdle
	m.muted = false
	m.cameraOn = true
	m.lastErr = ""

	m.metrics.SetGauge(metricActive, 0, nil, "Whether a call is active")
	if wasActive {
		m.metrics.IncrementCounter(metricEnds, nil, "Calls ended")
		m.logger.Info("Call ended")
	}
}

// ToggleMute flips the microphone track and mirrors it into the mute flag
func (m *Machine) ToggleMute() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode == models.CallModeIdle {
		return m.muted
	}
	enabled, ok := m.media.ToggleTrack(media.KindAudio)
	if !ok {
		return m.muted
	}
	m.muted = !enabled

	m.logger.WithField("muted", m.muted).Debug("Microphone toggled")
	return m.muted
}

// ToggleCamera flips the camera track and mirrors it into the camera flag.
// Audio-only calls have no camera track, so nothing changes.
func (m *Machine) ToggleCamera() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode == models.CallModeIdle {
		return m.cameraOn
	}
	enabled, ok := m.media.ToggleTrack(media.KindVideo)
	if !ok {
		return m.cameraOn
	}
	m.cameraOn = enabled

	m.logger.WithField("camera_on", m.cameraOn).Debug("Camera toggled")
	return m.cameraOn
}

// State returns the current call state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return State{
		Mode:       m.mode,
		Label:      m.mode.Label(),
		Muted:      m.muted,
		CameraOn:   m.cameraOn,
		HasVideo:   m.media.HasVideo(),
		Error:      m.lastErr,
		Connecting: len(m.inflight) > 0,
	}
}

// LocalVideo returns the handle the UI renders the local preview from. It is
// only present in video mode with the camera on.
func (m *Machine) LocalVideo() (media.Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode != models.CallModeVideo || !m.cameraOn {
		return media.Handle{}, false
	}
	return m.media.Current()
}
