package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"

	"tankbattle-backend/constants"
	"tankbattle-backend/game"
)

// PeerSignalingHandler relays SDP offers/answers and ICE candidates between
// the two players of a match, over their existing server connections. The
// game itself stays server-authoritative; the direct channel is for
// client-side extras like voice.
type PeerSignalingHandler struct {
	gameManager   *game.Manager
	offers        map[string]*PeerOffer     // userId -> offer
	answers       map[string]*PeerAnswer    // userId -> answer
	iceCandidates map[string][]ICECandidate // userId -> candidates
	mutex         sync.RWMutex
}

type PeerOffer struct {
	FromPlayerID string `json:"from_player_id"`
	ToPlayerID   string `json:"to_player_id"`
	Offer        struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	} `json:"offer"`
}

type PeerAnswer struct {
	FromPlayerID string `json:"from_player_id"`
	ToPlayerID   string `json:"to_player_id"`
	Answer       struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	} `json:"answer"`
}

type ICECandidate struct {
	FromPlayerID  string `json:"from_player_id"`
	ToPlayerID    string `json:"to_player_id"`
	Candidate     string `json:"candidate"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
	SDPMid        string `json:"sdpMid"`
}

func NewPeerSignalingHandler(gameManager *game.Manager) *PeerSignalingHandler {
	return &PeerSignalingHandler{
		gameManager:   gameManager,
		offers:        make(map[string]*PeerOffer),
		answers:       make(map[string]*PeerAnswer),
		iceCandidates: make(map[string][]ICECandidate),
	}
}

// sameSession checks the two players are actually matched with each other.
func (h *PeerSignalingHandler) sameSession(fromID, toID string) bool {
	session, err := h.gameManager.SessionFor(fromID)
	if err != nil {
		return false
	}
	return session.HasPlayer(toID)
}

// HandlePeerOffer forwards a WebRTC offer to the sender's opponent.
func (h *PeerSignalingHandler) HandlePeerOffer(w http.ResponseWriter, r *http.Request) {
	h.enableCORS(w, r)
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

	var offer PeerOffer
	if err := json.Unmarshal(body, &offer); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if !h.sameSession(offer.FromPlayerID, offer.ToPlayerID) {
		http.Error(w, "Players are not in the same match", http.StatusForbidden)
		return
	}

	log.Printf("Peer offer from %s to %s", offer.FromPlayerID, offer.ToPlayerID)

	h.mutex.Lock()
	h.offers[offer.ToPlayerID] = &offer
	h.mutex.Unlock()

	h.gameManager.Registry.Send(offer.ToPlayerID, constants.MSG_PEER_OFFER, map[string]any{
		"from_player_id": offer.FromPlayerID,
		"offer":          offer.Offer,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandlePeerAnswer forwards a WebRTC answer back to the offering player.
func (h *PeerSignalingHandler) HandlePeerAnswer(w http.ResponseWriter, r *http.Request) {
	h.enableCORS(w, r)
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

	var answer PeerAnswer
	if err := json.Unmarshal(body, &answer); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if !h.sameSession(answer.FromPlayerID, answer.ToPlayerID) {
		http.Error(w, "Players are not in the same match", http.StatusForbidden)
		return
	}

	log.Printf("Peer answer from %s to %s", answer.FromPlayerID, answer.ToPlayerID)

	h.mutex.Lock()
	h.answers[answer.ToPlayerID] = &answer
	h.mutex.Unlock()

	h.gameManager.Registry.Send(answer.ToPlayerID, constants.MSG_PEER_ANSWER, map[string]any{
		"from_player_id": answer.FromPlayerID,
		"answer":         answer.Answer,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleICECandidate forwards an ICE candidate to the other player.
func (h *PeerSignalingHandler) HandleICECandidate(w http.ResponseWriter, r *http.Request) {
	h.enableCORS(w, r)
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

	var candidate ICECandidate
	if err := json.Unmarshal(body, &candidate); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if !h.sameSession(candidate.FromPlayerID, candidate.ToPlayerID) {
		http.Error(w, "Players are not in the same match", http.StatusForbidden)
		return
	}

	log.Printf("ICE candidate from %s to %s", candidate.FromPlayerID, candidate.ToPlayerID)

	h.mutex.Lock()
	h.iceCandidates[candidate.ToPlayerID] = append(h.iceCandidates[candidate.ToPlayerID], candidate)
	h.mutex.Unlock()

	h.gameManager.Registry.Send(candidate.ToPlayerID, constants.MSG_PEER_ICE_CANDIDATE, map[string]any{
		"from_player_id": candidate.FromPlayerID,
		"candidate":      candidate.Candidate,
		"sdpMLineIndex":  candidate.SDPMLineIndex,
		"sdpMid":         candidate.SDPMid,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *PeerSignalingHandler) enableCORS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}
