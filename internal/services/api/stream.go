package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/logger"
	sensor_simulator "github.com/LeonardoBeccarini/agri_telemetry/internal/sensor-simulator"
)

const (
	defaultStreamInterval = 5 * time.Second
	streamWriteTimeout    = 10 * time.Second
)

// nessuna auth/CORS: qualsiasi origine puo' sottoscriversi
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type streamError struct {
	Error string `json:"error"`
}

// sensorStream invia la reading corrente subito e poi ad ogni streamEvery,
// finche' il client non chiude.
func (h *Handler) sensorStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("ws")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// il client non manda nulla: il read loop serve solo ad accorgersi della chiusura
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.streamEvery)
	defer ticker.Stop()

	for {
		if err := h.pushReading(conn); err != nil {
			log.Debug().Err(err).Msg("websocket stream ended")
			return
		}
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Handler) pushReading(conn *websocket.Conn) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	reading, err := h.engine.CurrentReading()
	switch {
	case errors.Is(err, sensor_simulator.ErrNoReading):
		return conn.WriteJSON(streamError{Error: "no reading available yet"})
	case err != nil:
		return conn.WriteJSON(streamError{Error: err.Error()})
	}
	return conn.WriteJSON(reading)
}
