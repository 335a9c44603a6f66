package server

//go:generate swag init -g internal/server/server.go -o internal/server/docs

// @title ReconAI API
// @version 0.1
// @description Scan orchestration API: submit OSINT scans, follow them over WebSocket and browse history.
// @contact.name ReconAI Maintainers
// @contact.url https://github.com/raysh454/reconai
// @BasePath /
