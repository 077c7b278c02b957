package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"voicebridge/internal/api"
	"voicebridge/internal/config"
	"voicebridge/internal/elevenlabs"
	"voicebridge/internal/transcribe"
	"voicebridge/internal/voice"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	for _, dir := range []string{cfg.SamplesDir(), cfg.TempDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create data directory %s: %v", dir, err)
		}
	}

	engine, err := transcribe.NewEngineFromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize transcription engine: %v", err)
	}

	store, err := voice.NewStore(cfg.ProfilesFile())
	if err != nil {
		log.Fatalf("Failed to open profile store: %v", err)
	}

	synth, err := elevenlabs.NewClient(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
	if err != nil {
		log.Fatalf("Failed to create ElevenLabs client: %v", err)
	}

	intake := voice.NewIntake(engine, store, cfg.SamplesDir())
	orchestrator := voice.NewOrchestrator(store, synth, 0)
	analyzer := voice.NewAnalyzer(store)

	// Set Gin mode (default to release mode)
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(corsMiddleware())

	// Static mount for stored sample audio.
	r.Static("/static", cfg.DataDir)

	handlers := api.NewHandlers(engine, store, intake, orchestrator, analyzer, synth)
	api.RegisterRoutes(r, handlers)

	log.Printf("VoiceBridge backend running on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// corsMiddleware adds permissive CORS headers for the web frontend
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
