// Package panel implementa la superficie HTTP/WS del monitor: ingest de
// samples, consultas históricas, estadísticas de bins, simulador de ejecución
// y fanout en vivo a suscriptores WebSocket por par.
package panel

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// subscriber es una conexión WS viva. El mutex serializa las escrituras:
// gorilla/websocket solo admite un writer concurrente por conexión.
type subscriber struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// Hub mantiene los suscriptores WS agrupados por par y difunde cada sample
// ingerido a los del par correspondiente. El broadcast itera un snapshot del
// set: conectar o desconectar durante un broadcast es seguro.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[string]*subscriber // pair → id → conn
}

// NewHub crea un hub vacío.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[string]*subscriber)}
}

// Subscribe registra la conexión en el set del par y devuelve el id con el
// que darla de baja.
func (h *Hub) Subscribe(pair string, conn *websocket.Conn) string {
	id := uuid.NewString()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[pair] == nil {
		h.subs[pair] = make(map[string]*subscriber)
	}
	h.subs[pair][id] = &subscriber{id: id, conn: conn}

	slog.Debug("ws subscribed", "pair", pair, "id", id, "subs", len(h.subs[pair]))
	return id
}

// Unsubscribe saca la conexión del set. Idempotente: desconexión del cliente
// y drop-on-error pueden llegar a la vez.
func (h *Hub) Unsubscribe(pair, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[pair]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(h.subs, pair)
		}
	}
}

// Broadcast empuja el payload a todos los suscriptores del par y devuelve
// cuántos envíos llegaron. El primer fallo de escritura elimina al
// suscriptor, sin reintento.
func (h *Hub) Broadcast(pair string, payload any) int {
	h.mu.Lock()
	snapshot := make([]*subscriber, 0, len(h.subs[pair]))
	for _, s := range h.subs[pair] {
		snapshot = append(snapshot, s)
	}
	h.mu.Unlock()

	sent := 0
	for _, s := range snapshot {
		if err := s.send(payload); err != nil {
			slog.Debug("ws send failed, dropping subscriber", "pair", pair, "id", s.id, "err", err)
			h.Unsubscribe(pair, s.id)
			s.conn.Close()
			continue
		}
		sent++
	}
	return sent
}

// Subscribers devuelve el tamaño actual del set de un par.
func (h *Hub) Subscribers(pair string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[pair])
}
