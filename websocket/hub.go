package websocket

import (
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

type Client struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
}

// InstallmentEvent is pushed to a connected payer whenever one of their
// installments changes status, so the dashboard updates without polling.
type InstallmentEvent struct {
	EnrollmentID      string `json:"enrollment_id"`
	InstallmentNumber int    `json:"installment_number"`
	Status            string `json:"status"`
	Amount            string `json:"amount"`
}

type userEvent struct {
	UserID uuid.UUID
	Event  InstallmentEvent
}

var clients = make(map[uuid.UUID]*websocket.Conn)
var clientsMu sync.RWMutex
var Register = make(chan *Client)
var Unregister = make(chan *Client)
var events = make(chan userEvent, 64)

// NotifyInstallment pushes a status change to the payer's dashboard, if
// they are connected. Never blocks the caller.
func NotifyInstallment(userID uuid.UUID, event InstallmentEvent) {
	select {
	case events <- userEvent{UserID: userID, Event: event}:
	default:
		log.Printf("Dropping installment event for user %s: hub backlog full", userID)
	}
}

func RunHub() {
	for {
		select {
		case client := <-Register:
			log.Printf("Client registered: %s", client.UserID)
			clientsMu.Lock()
			clients[client.UserID] = client.Conn
			clientsMu.Unlock()
		case client := <-Unregister:
			log.Printf("Client unregistered: %s", client.UserID)
			clientsMu.Lock()
			if conn, ok := clients[client.UserID]; ok && conn == client.Conn {
				delete(clients, client.UserID)
			}
			clientsMu.Unlock()
		case ev := <-events:
			clientsMu.RLock()
			conn, ok := clients[ev.UserID]
			clientsMu.RUnlock()
			if !ok {
				continue
			}
			if err := conn.WriteJSON(ev.Event); err != nil {
				log.Printf("Error sending installment event to client %s: %v", ev.UserID, err)
				conn.Close()
				clientsMu.Lock()
				delete(clients, ev.UserID)
				clientsMu.Unlock()
			}
		}
	}
}
