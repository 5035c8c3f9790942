package main

import (
	"log"
	"net/http"
	"os"

	"tankbattle-backend/auth"
	"tankbattle-backend/game"
	"tankbattle-backend/handlers"
	"tankbattle-backend/registry"
	"tankbattle-backend/webrtc"
)

func main() {
	connRegistry := registry.New()
	gameManager := game.NewManager(connRegistry)
	webrtcManager := webrtc.NewManager()

	wsHandler := handlers.NewWebSocketHandler(gameManager)
	webrtcHandler := handlers.NewWebRTCHandler(gameManager, webrtcManager)
	peerSignalingHandler := handlers.NewPeerSignalingHandler(gameManager)
	authHandler := handlers.NewAuthHandler()

	requireAuth := auth.Middleware(connRegistry)

	// WebSocket (primary transport: matchmaking + gameplay)
	http.Handle("/ws", wsHandler)

	// Guest identity tokens
	http.HandleFunc("/auth/guest", authHandler.HandleGuest)

	// WebRTC DataChannel transport (alternate to WebSocket)
	http.HandleFunc("/webrtc/offer", webrtcHandler.HandleOffer)

	// Peer-to-peer signaling between matched players
	http.Handle("/webrtc/peer/offer", requireAuth(http.HandlerFunc(peerSignalingHandler.HandlePeerOffer)))
	http.Handle("/webrtc/peer/answer", requireAuth(http.HandlerFunc(peerSignalingHandler.HandlePeerAnswer)))
	http.Handle("/webrtc/peer/ice", requireAuth(http.HandlerFunc(peerSignalingHandler.HandleICECandidate)))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	log.Printf("WebSocket endpoint: /ws")
	log.Printf("WebRTC endpoints: /webrtc/offer, /webrtc/peer/offer, /webrtc/peer/answer, /webrtc/peer/ice")
	log.Fatal(http.ListenAndServe(":"+port, nil))
}
