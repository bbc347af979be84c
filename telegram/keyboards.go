package telegram

import (
	"fmt"

	"github.com/rayannott/ded-moroz/models"
)

func removeKeyboard() ReplyKeyboardRemove {
	return ReplyKeyboardRemove{RemoveKeyboard: true}
}

// manageRoomsKeyboard lists the manager's active rooms, one button each.
func manageRoomsKeyboard(rooms []models.Room) InlineKeyboardMarkup {
	var rows [][]InlineKeyboardButton
	for _, room := range rooms {
		rows = append(rows, []InlineKeyboardButton{{
			Text:         fmt.Sprintf("%s (code %s)", room.Name, room.DisplayShortCode()),
			CallbackData: "manage:" + room.ID,
		}})
	}
	return InlineKeyboardMarkup{InlineKeyboard: rows}
}

// manageActionsKeyboard offers the management actions for one room.
func manageActionsKeyboard(roomID string) InlineKeyboardMarkup {
	return InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{
			{Text: "Play 🎲", CallbackData: "act:" + roomID + ":play"},
			{Text: "Complete 🏁", CallbackData: "act:" + roomID + ":complete"},
		},
		{
			{Text: "Kick 🥾", CallbackData: "act:" + roomID + ":kick"},
			{Text: "Info ℹ️", CallbackData: "act:" + roomID + ":info"},
		},
		{
			{Text: "Delete 🗑", CallbackData: "act:" + roomID + ":delete"},
		},
	}}
}

// kickKeyboard lists the room's members as kick candidates.
func kickKeyboard(roomID string, members []models.User) InlineKeyboardMarkup {
	var rows [][]InlineKeyboardButton
	for _, member := range members {
		rows = append(rows, []InlineKeyboardButton{{
			Text:         member.FormalDisplayName(),
			CallbackData: fmt.Sprintf("kick:%s:%d", roomID, member.ID),
		}})
	}
	rows = append(rows, []InlineKeyboardButton{{Text: "Cancel", CallbackData: "kick:" + roomID + ":cancel"}})
	return InlineKeyboardMarkup{InlineKeyboard: rows}
}
