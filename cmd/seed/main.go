package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/shandle1/CheckDee-sub000/models"
	"github.com/shandle1/CheckDee-sub000/services"
)

type seedUser struct {
	FullName string
	Email    string
	Role     models.UserRole
}

var seedUsers = []seedUser{
	{FullName: "Demo Admin", Email: "admin@checkdee.local", Role: models.RoleAdmin},
	{FullName: "Demo Reviewer", Email: "reviewer@checkdee.local", Role: models.RoleReviewer},
	{FullName: "Demo Worker", Email: "worker@checkdee.local", Role: models.RoleWorker},
}

// Seeds a Postgres database that the server has already migrated: demo users,
// one task near Lumphini Park, and development tokens for each user.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	dbURL := os.Getenv("DB_URL")
	secret := os.Getenv("JWT_SECRET")
	if dbURL == "" || secret == "" {
		log.Fatal("DB_URL and JWT_SECRET are required")
	}
	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "checkdee-demo"
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}
	log.Println("✅ Successfully connected to database")

	tokens := services.NewJWTService(secret, 24*30)
	hash, err := tokens.HashPassword(password)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	ids := make(map[models.UserRole]uint)
	for _, u := range seedUsers {
		id, err := upsertUser(db, u, hash)
		if err != nil {
			log.Fatalf("Failed to seed %s: %v", u.Email, err)
		}
		ids[u.Role] = id
		log.Printf("👤 %s (%s) id=%d", u.Email, u.Role, id)
	}

	taskID, err := seedTask(db, ids[models.RoleReviewer], ids[models.RoleWorker])
	if err != nil {
		log.Fatal("Failed to seed task:", err)
	}
	log.Printf("📍 Demo task id=%d", taskID)

	fmt.Println()
	fmt.Println("Development tokens (valid 30 days):")
	for _, u := range seedUsers {
		token, err := tokens.GenerateAccessToken(&models.User{ID: ids[u.Role], Role: u.Role})
		if err != nil {
			log.Fatal("Failed to sign token:", err)
		}
		fmt.Printf("%-9s %s\n", u.Role, token)
	}
}

func upsertUser(db *sql.DB, u seedUser, hash string) (uint, error) {
	var id uint
	err := db.QueryRow(`
		INSERT INTO users (full_name, email, password_hash, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()
		RETURNING id`,
		u.FullName, u.Email, hash, string(u.Role),
	).Scan(&id)
	return id, err
}

func seedTask(db *sql.DB, reviewerID, workerID uint) (uint, error) {
	var existing uint
	err := db.QueryRow(`SELECT id FROM tasks WHERE title = $1 AND deleted_at IS NULL`, "Inspect park fountain").Scan(&existing)
	if err == nil {
		log.Printf("⚠️  Demo task already exists. Skipping insertion.")
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var taskID uint
	due := time.Now().Add(72 * time.Hour)
	err = tx.QueryRow(`
		INSERT INTO tasks (title, description, latitude, longitude, radius_meters, assigned_worker_id,
			created_by_id, due_date, priority, status, required_photos_before, required_photos_after,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING id`,
		"Inspect park fountain", "Check the pump and clean the basin.",
		13.7469, 100.5398, 100.0, workerID, reviewerID, due,
		string(models.PriorityMedium), string(models.TaskStatusAssigned), 1, 1,
	).Scan(&taskID)
	if err != nil {
		return 0, err
	}

	checklist := []struct {
		Text     string
		Critical bool
	}{
		{"Pump is running", true},
		{"Basin cleaned", false},
	}
	for i, item := range checklist {
		if _, err := tx.Exec(`
			INSERT INTO checklist_items (task_id, position, text, is_critical, created_at)
			VALUES ($1, $2, $3, $4, NOW())`, taskID, i+1, item.Text, item.Critical); err != nil {
			return 0, err
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO questions (task_id, position, text, type, is_required, options, created_at)
		VALUES ($1, 1, $2, $3, true, $4, NOW())`,
		taskID, "Water condition", string(models.QuestionSingleChoice), `["clear","cloudy","dirty"]`); err != nil {
		return 0, err
	}

	return taskID, tx.Commit()
}
