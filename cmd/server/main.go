package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gopkg.in/yaml.v3"

	"github.com/Masudi2022/Shifaa-fyp/internal/advice"
	"github.com/Masudi2022/Shifaa-fyp/internal/config"
	"github.com/Masudi2022/Shifaa-fyp/internal/dialogue"
	"github.com/Masudi2022/Shifaa-fyp/internal/lexicon"
	"github.com/Masudi2022/Shifaa-fyp/internal/ml"
	"github.com/Masudi2022/Shifaa-fyp/internal/report"
	"github.com/Masudi2022/Shifaa-fyp/internal/triage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// 1. Process-wide read-only state. Serving without a complete artifact
	// set is not allowed, so these loads are fatal.
	artifact, err := ml.LoadArtifact(cfg.ModelPath)
	if err != nil {
		log.Fatalf("Model artifact unavailable: %v", err)
	}
	log.Printf("Loaded model artifact: %d symptoms, %d classes", len(artifact.SymptomColumns), len(artifact.Classes))

	dataset, err := ml.LoadCSV(cfg.DatasetPath)
	if err != nil {
		log.Fatalf("Training dataset unavailable: %v", err)
	}
	matrix, err := triage.NewMatrix(dataset.Columns, dataset.Labels, dataset.Rows)
	if err != nil {
		log.Fatalf("Invalid training dataset: %v", err)
	}
	log.Printf("Loaded triage matrix: %d rows, %d diseases", len(dataset.Rows), len(matrix.Labels()))

	lex := lexicon.New(artifact.SymptomColumns, loadAliases(cfg.AliasPath), lexicon.Thresholds{
		Token:  cfg.Matching.TokenThreshold,
		Phrase: cfg.Matching.PhraseThreshold,
	})

	kb, err := advice.LoadKB(cfg.AdvicePath)
	if err != nil {
		log.Fatalf("Knowledge base error: %v", err)
	}
	if len(kb) == 0 {
		log.Println("Knowledge base empty or missing - advice will be synthesized from dataset statistics.")
	}
	advisor := advice.NewResolver(kb, matrix, advice.Thresholds{
		Key:   cfg.Matching.KeyThreshold,
		Alias: cfg.Matching.AliasThreshold,
	}, cfg.Dialogue.SynthesisTopK)

	// 2. Infrastructure.
	var db *sql.DB
	for i := 0; i < 10; i++ {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			break
		}
		log.Printf("Waiting for DB... (%d/10)", i+1)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatalf("Could not connect to DB: %v", err)
	}
	log.Println("Connected to Database.")

	m, err := migrate.New(cfg.MigrationsURL, cfg.DatabaseURL)
	if err != nil {
		log.Printf("Migration init failed: %v", err)
	} else if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Printf("Migration up failed: %v", err)
	} else {
		log.Println("Migrations applied successfully!")
	}

	// 3. Services.
	repo := dialogue.NewRepository(db)
	dialogueSvc := dialogue.NewService(repo, lex, matrix, artifact, advisor, cfg.Dialogue)
	dialogueHandler := dialogue.NewHandler(dialogueSvc)
	reportSvc := report.NewService()
	reportHandler := report.NewHandler(reportSvc, dialogueSvc)

	// 4. Router.
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
			if r.Method == "OPTIONS" {
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		dialogue.RegisterRoutes(r, dialogueHandler)
		report.RegisterRoutes(r, reportHandler)
	})

	fmt.Printf("Server starting on port %s...\n", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal(err)
	}
}

// loadAliases reads an optional YAML map of extra symptom aliases.
func loadAliases(path string) map[string]string {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Alias file %s not loaded: %v", path, err)
		return nil
	}
	var aliases map[string]string
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		log.Printf("Alias file %s is invalid: %v", path, err)
		return nil
	}
	return aliases
}
