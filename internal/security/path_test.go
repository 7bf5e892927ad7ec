package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
		errMsg  string
	}{
		{name: "relative path", path: "config/test.json"},
		{name: "absolute path", path: "/var/lib/roomchat/roomchat.db"},
		{name: "dots inside a name", path: "notes..final.txt"},
		{name: "current dir segment", path: "./roomchat.db"},
		{name: "empty path", path: "", wantErr: true, errMsg: "path cannot be empty"},
		{name: "blank path", path: "   ", wantErr: true, errMsg: "path cannot be empty"},
		{name: "traversal", path: "../../../etc/passwd", wantErr: true, errMsg: "directory traversal"},
		{name: "embedded traversal", path: "config/../../etc/passwd", wantErr: true, errMsg: "directory traversal"},
		{name: "absolute traversal", path: "/tmp/../etc/passwd", wantErr: true, errMsg: "directory traversal"},
		{name: "nul byte", path: "roomchat\x00.db", wantErr: true, errMsg: "NUL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFilePathWithBase(t *testing.T) {
	base := t.TempDir()

	assert.NoError(t, ValidateFilePathWithBase("uploads/photo.png", base))
	assert.Error(t, ValidateFilePathWithBase("../outside.png", base))
	assert.Error(t, ValidateFilePathWithBase("/etc/passwd", base))
	assert.Error(t, ValidateFilePathWithBase("", base))
}
