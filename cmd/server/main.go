package main

import (
	"log"
	"net/http"

	"github.com/Vedantraval2444/AuraSight-AI-App/internal/attribution"
	"github.com/Vedantraval2444/AuraSight-AI-App/internal/classifier"
	"github.com/Vedantraval2444/AuraSight-AI-App/internal/config"
	"github.com/Vedantraval2444/AuraSight-AI-App/internal/handlers"
	"github.com/Vedantraval2444/AuraSight-AI-App/internal/pipeline"
	"github.com/Vedantraval2444/AuraSight-AI-App/internal/report"
)

func enableCORS(allowedOrigins []string, next http.HandlerFunc) http.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func main() {
	cfg := config.Load()

	log.Printf("Loading model from: %s", cfg.ModelDir)

	// A failed weight load disables inference but keeps the service up;
	// every /predict request then reports model_unavailable.
	var clf pipeline.Classifier
	model, err := classifier.NewModel(cfg.ModelDir)
	if err != nil {
		log.Printf("Error loading model: %v", err)
	} else {
		defer model.Close()
		clf = model
		log.Printf("Model loaded, classes: %v", model.Classes())
	}

	analyzer := pipeline.NewService(clf, attribution.NewEngine())
	handler := handlers.NewHandler(analyzer, report.NewRenderer())

	http.HandleFunc("/", enableCORS(cfg.AllowedOrigins, handler.Root))
	http.HandleFunc("/health", enableCORS(cfg.AllowedOrigins, handler.Health))
	http.HandleFunc("/predict", enableCORS(cfg.AllowedOrigins, handler.Predict))
	http.HandleFunc("/export_pdf", enableCORS(cfg.AllowedOrigins, handler.ExportPDF))

	log.Printf("Server starting on port %s", cfg.Port)
	log.Println("Endpoints:")
	log.Println("  GET  /health     - Health check")
	log.Println("  POST /predict    - Classify a retinal scan upload")
	log.Println("  POST /export_pdf - Render a diagnostic report PDF")

	if err := http.ListenAndServe(":"+cfg.Port, nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
