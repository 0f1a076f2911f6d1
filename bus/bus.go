package bus

import (
	"github.com/sat8bit/machi/notify"
)

// Busは通知の送受信責務を持つ
type Bus interface {
	Broadcast(n *notify.Notification) error
	Subscribe() <-chan *notify.Notification
	Unsubscribe(ch <-chan *notify.Notification)
	Close()
}
