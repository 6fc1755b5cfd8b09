package chathub

import (
	"context"

	"mychat/backend/internal/storage"

	"go.uber.org/zap"
)

// Run delivers frames relayed by other instances to local sessions until ctx is done.
// Without presence there is nothing to relay and Run just waits.
func (m *ManagerService) Run(ctx context.Context) error {
	if m.presence == nil {
		<-ctx.Done()
		return nil
	}
	m.log.Info("Relay listener started")
	return m.presence.Listen(ctx, m.log, m.handleDelivery)
}

func (m *ManagerService) handleDelivery(d storage.Delivery) {
	if !m.deliverLocal(d.RecipientID, d.Frame) {
		// The recipient left between the presence check and the relay. The sender's
		// instance already decided not to notify, so the frame is only in the history.
		m.log.Debug("Relayed frame without local session", zap.Uint("user_id", d.RecipientID))
	}
}

// Close ends every session on this instance.
func (m *ManagerService) Close() {
	m.mu.Lock()
	sessions := make([]Client, 0, len(m.sessions))
	for _, client := range m.sessions {
		sessions = append(sessions, client)
	}
	m.mu.Unlock()

	for _, client := range sessions {
		client.Close()
	}
}
