package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"

	"tankbattle-backend/game"
	"tankbattle-backend/models"
	webrtcManager "tankbattle-backend/webrtc"
)

type WebRTCHandler struct {
	gameManager   *game.Manager
	webrtcManager *webrtcManager.Manager
}

func NewWebRTCHandler(gameManager *game.Manager, webrtcMgr *webrtcManager.Manager) *WebRTCHandler {
	// DataChannel frames flow through the same dispatch as WebSocket frames;
	// channel teardown runs the same unregister/forfeit path.
	webrtcMgr.OnMessage(func(client *models.Player, raw []byte) {
		gameManager.HandleMessage(client, raw)
	})
	webrtcMgr.OnClose(func(client *models.Player) {
		gameManager.Registry.Unregister(client.ID, client.ConnID)
	})

	return &WebRTCHandler{
		gameManager:   gameManager,
		webrtcManager: webrtcMgr,
	}
}

// HandleOffer answers a client's WebRTC offer and sets up the DataChannel
// transport for it.
func (h *WebRTCHandler) HandleOffer(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	var offerData struct {
		Offer struct {
			Type string `json:"type"`
			SDP  string `json:"sdp"`
		} `json:"offer"`
	}

	if err := json.Unmarshal(body, &offerData); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	// Identity is bound later by the join frame on the DataChannel, exactly
	// as on a token-less WebSocket.
	client := &models.Player{
		ConnID:   uuid.New().String(),
		Send:     make(chan []byte, 256),
		JoinedAt: time.Now(),
	}

	peer, err := h.webrtcManager.CreatePeer(client)
	if err != nil {
		http.Error(w, "Failed to create peer connection: "+err.Error(), http.StatusInternalServerError)
		return
	}

	offer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerData.Offer.SDP,
	}

	if err := peer.PeerConnection.SetRemoteDescription(offer); err != nil {
		http.Error(w, "Failed to set remote description", http.StatusInternalServerError)
		return
	}

	answer, err := peer.PeerConnection.CreateAnswer(nil)
	if err != nil {
		http.Error(w, "Failed to create answer", http.StatusInternalServerError)
		return
	}

	if err := peer.PeerConnection.SetLocalDescription(answer); err != nil {
		http.Error(w, "Failed to set local description", http.StatusInternalServerError)
		return
	}

	response := map[string]any{
		"connection_id": client.ConnID,
		"answer": map[string]string{
			"type": answer.Type.String(),
			"sdp":  answer.SDP,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}
