package store

import (
	"roomchat/internal/constants"
	"roomchat/internal/models"
)

func seedFor(mode models.RoomMode, displayName string) []models.Message {
	if mode == models.RoomModeGroup {
		return []models.Message{
			{
				ID:         1,
				Text:       "Welcome everyone. This room is ready for testing.",
				Sender:     models.SenderOther,
				SenderName: constants.GroupHostName,
				Time:       "12:25",
			},
			{
				ID:         2,
				Text:       "Perfect, let's test attachments and calls.",
				Sender:     models.SenderOther,
				SenderName: constants.ContactName,
				Time:       "12:26",
			},
			{
				ID:         3,
				Text:       "I joined as host.",
				Sender:     models.SenderSelf,
				SenderName: displayName,
				Time:       "12:27",
				Status:     models.DeliveryStatusRead,
			},
		}
	}

	return []models.Message{
		{
			ID:         1,
			Text:       "Hey, ready to test the new call flow?",
			Sender:     models.SenderOther,
			SenderName: constants.ContactName,
			Time:       "12:28",
		},
		{
			ID:         2,
			Text:       "Yes, UI is ready. Start when you want.",
			Sender:     models.SenderSelf,
			SenderName: displayName,
			Time:       "12:29",
			Status:     models.DeliveryStatusRead,
		},
		{
			ID:         3,
			Text:       "Sharing the latest product doc for review.",
			Sender:     models.SenderOther,
			SenderName: constants.ContactName,
			Time:       "12:30",
			Attachments: []models.Attachment{
				{ID: 1, Name: "roadmap.pdf", SizeLabel: "2.1 MB", Kind: "application/pdf"},
			},
		},
	}
}
