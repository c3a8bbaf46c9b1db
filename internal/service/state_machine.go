package service

import "github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"

// transitions lists the statuses reachable from each status. Statuses with
// no entry are terminal.
var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:    {model.OrderStatusConfirmed, model.OrderStatusProcessing, model.OrderStatusCancelled},
	model.OrderStatusConfirmed:  {model.OrderStatusConfirmed, model.OrderStatusProcessing, model.OrderStatusCancelled},
	model.OrderStatusProcessing: {model.OrderStatusShipped, model.OrderStatusCancelled},
	model.OrderStatusShipped:    {model.OrderStatusDelivered, model.OrderStatusReturned},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to model.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s model.OrderStatus) bool {
	return len(transitions[s]) == 0
}

// customerCancellable are the statuses a customer may cancel from.
func customerCancellable(s model.OrderStatus) bool {
	return s == model.OrderStatusPending || s == model.OrderStatusConfirmed
}
