package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rayannott/ded-moroz/models"
	"github.com/rayannott/ded-moroz/repository"
	"github.com/rayannott/ded-moroz/services"
)

const helpText = `Here are some commands you can use:
/start - Register with the bot
/create <name> - Create a new room
/join <code> - Join a room by its 4-digit code
/here - Join the room you just created
/leave - Leave your current room
/name <name> - Set your display name
/info - Show what I know about you
/manage - Manage the rooms you created
/web - Get an access token for the web API
/help - Show this message`

// Handler turns Telegram updates into Moroz calls and Moroz results into
// messages. All notification fan-out lives here, never in the service.
type Handler struct {
	client *Client
	state  *StateStore
	moroz  *services.Moroz
	tokens *services.TokenService
}

func NewHandler(client *Client, state *StateStore, moroz *services.Moroz, tokens *services.TokenService) *Handler {
	return &Handler{client: client, state: state, moroz: moroz, tokens: tokens}
}

func (h *Handler) Handle(ctx context.Context, upd Update) {
	switch {
	case upd.Message != nil && upd.Message.From != nil:
		h.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	command, arg := splitCommand(text)
	logrus.WithFields(logrus.Fields{"chat_id": chatID, "command": command}).Info("Incoming message")

	if command == "/start" {
		h.register(ctx, msg)
		return
	}
	if command == "/help" {
		h.send(chatID, helpText, nil)
		return
	}

	// Everything else needs a registered user.
	user, err := h.moroz.GetUser(ctx, msg.From.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.send(chatID, "I don't know you yet. Please register first with /start.", nil)
		} else {
			h.internalError(chatID, err)
		}
		return
	}

	switch command {
	case "/create":
		if arg == "" {
			h.state.Set(ctx, chatID, ChatState{State: StateAwaitRoomName})
			h.send(chatID, "What should the room be called?", nil)
			return
		}
		h.createRoom(ctx, user, arg)
	case "/join":
		if arg == "" {
			h.state.Set(ctx, chatID, ChatState{State: StateAwaitCode})
			h.send(chatID, "Send me the 4-digit room code.", nil)
			return
		}
		h.joinRoom(ctx, user, arg)
	case "/here":
		h.here(ctx, user)
	case "/leave":
		h.leaveRoom(ctx, user)
	case "/name":
		if arg == "" {
			h.state.Set(ctx, chatID, ChatState{State: StateAwaitName})
			h.send(chatID, "What should I call you?", nil)
			return
		}
		h.setName(ctx, user, arg)
	case "/info":
		info, err := h.moroz.GetUserInformation(ctx, user.ID)
		if err != nil {
			h.internalError(chatID, err)
			return
		}
		h.send(chatID, info, nil)
	case "/manage":
		h.manage(ctx, user)
	case "/web":
		h.webToken(user)
	default:
		h.plainText(ctx, user, text)
	}
}

// plainText resolves a non-command message against the pending conversation
// state, if any.
func (h *Handler) plainText(ctx context.Context, user *models.User, text string) {
	chatID := user.ID
	state := h.state.Get(ctx, chatID)
	if state.State == StateNone {
		h.send(chatID, "Couldn't determine what to do with that. Try /help.", nil)
		return
	}
	h.state.Clear(ctx, chatID)

	switch state.State {
	case StateAwaitRoomName:
		h.createRoom(ctx, user, text)
	case StateAwaitCode:
		h.joinRoom(ctx, user, text)
	case StateAwaitName:
		h.setName(ctx, user, text)
	}
}

func (h *Handler) register(ctx context.Context, msg *Message) {
	var username, name *string
	if msg.From.Username != "" {
		username = &msg.From.Username
	}
	if msg.From.FirstName != "" {
		name = &msg.From.FirstName
	}

	_, err := h.moroz.CreateUser(ctx, msg.From.ID, username, name)
	if err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			h.send(msg.Chat.ID, "You are already registered.", nil)
			return
		}
		h.internalError(msg.Chat.ID, err)
		return
	}
	h.send(msg.Chat.ID, "Hello! You are now registered. Use /create to start a gift exchange or /join to enter one.", nil)
}

func (h *Handler) createRoom(ctx context.Context, user *models.User, name string) {
	room, err := h.moroz.CreateRoom(ctx, user.ID, name)
	if err != nil {
		if errors.Is(err, services.ErrMaxNumberOfRoomsReached) {
			h.send(user.ID, "You already manage the maximum allowed number of rooms.", nil)
			return
		}
		h.internalError(user.ID, err)
		return
	}
	h.send(user.ID, fmt.Sprintf(
		"Room %s created! Share code %s so others can /join. Send /here to join it yourself.",
		room.Name, room.DisplayShortCode()), nil)
}

func (h *Handler) joinRoom(ctx context.Context, user *models.User, arg string) {
	code, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		h.send(user.ID, "That does not look like a room code. Send a 4-digit number.", nil)
		return
	}

	room, err := h.moroz.JoinRoomByShortCode(ctx, user.ID, code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAlreadyInRoom):
			h.send(user.ID, "You are already in a room. /leave it first.", nil)
		case errors.Is(err, repository.ErrRoomNotFound):
			h.send(user.ID, fmt.Sprintf("Room with code %04d not found.", code), nil)
		case errors.Is(err, services.ErrGameAlreadyStarted):
			h.send(user.ID, fmt.Sprintf("Cannot join room %04d: the game has already started.", code), nil)
		case errors.Is(err, services.ErrGameAlreadyCompleted):
			h.send(user.ID, fmt.Sprintf("Cannot join room %04d: the game has already been completed.", code), nil)
		default:
			h.internalError(user.ID, err)
		}
		return
	}

	h.send(user.ID, fmt.Sprintf("You have joined room %s.", room.DisplayShortCode()), nil)
	h.send(room.ManagerUserID, fmt.Sprintf(
		"%s has joined your room %s.", user.FormalDisplayName(), room.DisplayShortCode()), nil)
}

// here joins the sender to the room they created within the last minute, the
// common flow right after /create.
func (h *Handler) here(ctx context.Context, user *models.User) {
	undetermined := func() {
		h.send(user.ID, "Couldn't determine what to do with the /here command.", nil)
	}

	if user.InRoom() {
		undetermined()
		return
	}
	rooms, err := h.moroz.GetActiveRoomsManagedByUser(ctx, user.ID)
	if err != nil || len(rooms) == 0 {
		undetermined()
		return
	}
	latest := rooms[0]
	for _, room := range rooms[1:] {
		if room.CreatedAt.After(latest.CreatedAt) {
			latest = room
		}
	}
	if time.Since(latest.CreatedAt) > time.Minute {
		undetermined()
		return
	}

	if _, err := h.moroz.JoinRoomByShortCode(ctx, user.ID, latest.ShortCode); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"user_id": user.ID, "room_id": latest.ID}).Error("Failed to join just created room")
		undetermined()
		return
	}
	h.send(user.ID, "You have joined the room you just created.", nil)
}

func (h *Handler) leaveRoom(ctx context.Context, user *models.User) {
	room, err := h.moroz.LeaveRoom(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotInRoom) {
			h.send(user.ID, "You are not in any room.", nil)
			return
		}
		h.internalError(user.ID, err)
		return
	}

	h.send(user.ID, fmt.Sprintf("You have left room %s.", room.DisplayShortCode()), nil)
	h.send(room.ManagerUserID, fmt.Sprintf(
		"%s has left your room %s.", user.FormalDisplayName(), room.DisplayShortCode()), nil)
}

func (h *Handler) setName(ctx context.Context, user *models.User, name string) {
	if err := h.moroz.UpdateName(ctx, user.ID, name); err != nil {
		if errors.Is(err, services.ErrInvalidName) {
			h.send(user.ID, fmt.Sprintf("That name won't do: it %s.", reasonOf(err)), nil)
			return
		}
		h.internalError(user.ID, err)
		return
	}
	h.send(user.ID, fmt.Sprintf("Nice to meet you, %s!", name), nil)
}

func (h *Handler) manage(ctx context.Context, user *models.User) {
	rooms, err := h.moroz.GetActiveRoomsManagedByUser(ctx, user.ID)
	if err != nil {
		h.internalError(user.ID, err)
		return
	}
	if len(rooms) == 0 {
		h.send(user.ID, "You don't manage any active rooms. Use /create to make one.", nil)
		return
	}
	h.send(user.ID, "Select a room to manage:", manageRoomsKeyboard(rooms))
}

func (h *Handler) webToken(user *models.User) {
	token, err := h.tokens.IssueToken(user.ID)
	if err != nil {
		h.internalError(user.ID, err)
		return
	}
	h.send(user.ID, "Your web API token (valid for a limited time):\n"+token, nil)
}

// --- callback queries (inline keyboards) ---

func (h *Handler) handleCallback(ctx context.Context, cq *CallbackQuery) {
	parts := strings.Split(cq.Data, ":")
	logrus.WithFields(logrus.Fields{"user_id": cq.From.ID, "data": cq.Data}).Info("Incoming callback")

	defer h.client.AnswerCallbackQuery(cq.ID, "")

	if len(parts) < 2 {
		return
	}
	roomID := parts[1]

	room, err := h.moroz.GetRoom(ctx, roomID)
	if err != nil {
		h.send(cq.From.ID, "This room no longer exists.", nil)
		return
	}
	if room.ManagerUserID != cq.From.ID {
		h.send(cq.From.ID, "You are not the manager of this room.", nil)
		return
	}

	switch parts[0] {
	case "manage":
		h.editOrSend(cq, fmt.Sprintf("Room %s (code %s). Choose an action:", room.Name, room.DisplayShortCode()),
			manageActionsKeyboard(room.ID))
	case "act":
		if len(parts) < 3 {
			return
		}
		h.manageAction(ctx, cq, room, parts[2])
	case "kick":
		if len(parts) < 3 {
			return
		}
		h.kick(ctx, cq, room, parts[2])
	}
}

func (h *Handler) manageAction(ctx context.Context, cq *CallbackQuery, room *models.Room, action string) {
	manager := cq.From.ID
	switch action {
	case "play":
		h.startGame(ctx, cq, room)
	case "complete":
		h.completeGame(ctx, cq, room)
	case "info":
		info, err := h.moroz.GetRoomInformation(ctx, room.ID)
		if err != nil {
			h.internalError(manager, err)
			return
		}
		h.editOrSend(cq, info, nil)
	case "delete":
		h.deleteRoom(ctx, cq, room)
	case "kick":
		members, err := h.moroz.GetUsersInRoom(ctx, room.ID)
		if err != nil {
			h.internalError(manager, err)
			return
		}
		if len(members) == 0 {
			h.editOrSend(cq, "There are no players in the room to kick.", nil)
			return
		}
		h.editOrSend(cq, "Select a player to kick:", kickKeyboard(room.ID, members))
	}
}

func (h *Handler) startGame(ctx context.Context, cq *CallbackQuery, room *models.Room) {
	manager := cq.From.ID
	pairs, err := h.moroz.StartGame(ctx, room.ID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRoomTooSmall):
			h.editOrSend(cq, fmt.Sprintf(
				"Cannot start the game: not enough players in the room (need at least %d).",
				h.moroz.MinPlayersToStartGame()), nil)
		case errors.Is(err, services.ErrGameAlreadyStarted):
			h.editOrSend(cq, "The game in this room has already started.", nil)
		case errors.Is(err, services.ErrGameAlreadyCompleted):
			h.editOrSend(cq, "The game in this room has already been completed.", nil)
		default:
			h.internalError(manager, err)
		}
		return
	}

	participants := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		h.send(pair.Giver.ID, fmt.Sprintf(
			"The game in room %s has started! You are to give a gift to %s 🎁",
			room.DisplayShortCode(), pair.Receiver.DisplayName()), nil)
		participants = append(participants, pair.Giver.FormalDisplayName())
	}
	h.editOrSend(cq, fmt.Sprintf(
		"The game in room %s has started! All participants (%s) have been notified privately.",
		room.DisplayShortCode(), strings.Join(participants, ", ")), nil)
}

func (h *Handler) completeGame(ctx context.Context, cq *CallbackQuery, room *models.Room) {
	manager := cq.From.ID
	members, err := h.moroz.CompleteGame(ctx, room.ID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrGameNotStarted):
			h.editOrSend(cq, "The game in this room has not started yet.", nil)
		case errors.Is(err, services.ErrGameAlreadyCompleted):
			h.editOrSend(cq, "The game in this room has already been completed.", nil)
		default:
			h.internalError(manager, err)
		}
		return
	}

	h.editOrSend(cq, fmt.Sprintf(
		"The game in room %s has been completed successfully. 🎉", room.DisplayShortCode()), nil)
	for _, member := range members {
		h.send(member.ID, fmt.Sprintf(
			"The game in room %s has been completed by its manager. Thank you for participating!",
			room.DisplayShortCode()), nil)
	}
}

func (h *Handler) deleteRoom(ctx context.Context, cq *CallbackQuery, room *models.Room) {
	manager := cq.From.ID
	members, err := h.moroz.DeleteRoom(ctx, room.ID)
	if err != nil {
		h.internalError(manager, err)
		return
	}

	h.editOrSend(cq, fmt.Sprintf(
		"Room %s (%d players) deleted successfully. 🎉", room.DisplayShortCode(), len(members)), nil)

	managerUser, err := h.moroz.GetUser(ctx, manager)
	managerName := "its manager"
	if err == nil {
		managerName = managerUser.FormalDisplayName()
	}
	for _, member := range members {
		h.send(member.ID, fmt.Sprintf(
			"The room %s you were in has been deleted by its manager %s. You have been removed from the room.",
			room.DisplayShortCode(), managerName), nil)
	}
}

func (h *Handler) kick(ctx context.Context, cq *CallbackQuery, room *models.Room, target string) {
	manager := cq.From.ID
	if target == "cancel" {
		h.editOrSend(cq, "Kick action cancelled.", nil)
		return
	}

	targetID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return
	}
	player, err := h.moroz.GetUser(ctx, targetID)
	if err != nil {
		h.internalError(manager, err)
		return
	}

	if _, err := h.moroz.LeaveRoom(ctx, targetID); err != nil {
		if errors.Is(err, repository.ErrNotInRoom) {
			h.editOrSend(cq, fmt.Sprintf(
				"Player %s is already not in the room. Perhaps they left while you were choosing?",
				player.FormalDisplayName()), nil)
			return
		}
		h.internalError(manager, err)
		return
	}

	h.editOrSend(cq, fmt.Sprintf(
		"Player %s has been kicked from the room %s.",
		player.FormalDisplayName(), room.DisplayShortCode()), nil)

	managerUser, err := h.moroz.GetUser(ctx, manager)
	managerName := "its manager"
	if err == nil {
		managerName = managerUser.FormalDisplayName()
	}
	h.send(player.ID, fmt.Sprintf(
		"You have been kicked from the room %s by its manager %s.",
		room.DisplayShortCode(), managerName), nil)
}

// --- helpers ---

func (h *Handler) send(chatID int64, text string, markup interface{}) {
	if markup == nil {
		markup = removeKeyboard()
	}
	if _, err := h.client.SendMessage(chatID, text, markup); err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
}

// editOrSend replaces the keyboard message the callback came from, falling
// back to a fresh message when the original is gone.
func (h *Handler) editOrSend(cq *CallbackQuery, text string, markup interface{}) {
	if cq.Message != nil {
		if err := h.client.EditMessageText(cq.Message.Chat.ID, cq.Message.MessageID, text, markup); err == nil {
			return
		}
	}
	h.send(cq.From.ID, text, markup)
}

func (h *Handler) internalError(chatID int64, err error) {
	logrus.WithError(err).WithField("chat_id", chatID).Error("Internal error")
	h.send(chatID, "Internal error.", nil)
}

func splitCommand(text string) (command, arg string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	parts := strings.SplitN(text, " ", 2)
	command = parts[0]
	// Commands may carry the bot mention, e.g. /start@ded_moroz_bot.
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return command, arg
}

func reasonOf(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}
