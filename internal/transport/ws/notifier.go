package ws

import (
	"context"

	"github.com/vedran77/dmchat/internal/domain"
)

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// NotifyEditedMessage tells the other participant, if online, that msg changed.
func (n *HubNotifier) NotifyEditedMessage(ctx context.Context, msg *domain.Message) {
	n.hub.SendToUser(ctx, msg.Peer(msg.SenderID), NewMessageEdited(msg.ID, msg.Content))
}

func (n *HubNotifier) NotifyDeletedMessage(ctx context.Context, msg *domain.Message) {
	n.hub.SendToUser(ctx, msg.Peer(msg.SenderID), NewMessageDeleted(msg.ID))
}
