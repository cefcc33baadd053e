package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/avachat/internal/api/auth"
	"github.com/avachat/pkg/models"
)

// NoteHandlers serves the notes created through chat.
type NoteHandlers struct {
	db *sql.DB
}

func NewNoteHandlers(db *sql.DB) *NoteHandlers {
	return &NoteHandlers{db: db}
}

type createNoteRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Create adds a note directly, outside the chat flow.
func (h *NoteHandlers) Create(c echo.Context) error {
	user := auth.UserFromContext(c)

	var req createNoteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Body == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "body is required"})
	}
	if req.Title == "" {
		req.Title = "Untitled"
	}

	var n models.Note
	err := h.db.QueryRow(
		`INSERT INTO notes (user_id, title, body) VALUES ($1, $2, $3) RETURNING id, user_id, title, body, created_at`,
		user.ID, req.Title, req.Body,
	).Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.CreatedAt)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to create note")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create note"})
	}

	return c.JSON(http.StatusCreated, n)
}

// List returns the user's notes, newest first.
func (h *NoteHandlers) List(c echo.Context) error {
	user := auth.UserFromContext(c)
	rows, err := h.db.Query(
		`SELECT id, user_id, title, body, created_at FROM notes WHERE user_id = $1 ORDER BY created_at DESC`,
		user.ID,
	)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to list notes")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list notes"})
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read notes"})
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read notes"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"notes": notes})
}

// Get returns one note by id.
func (h *NoteHandlers) Get(c echo.Context) error {
	user := auth.UserFromContext(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid note id"})
	}

	var n models.Note
	err = h.db.QueryRow(
		`SELECT id, user_id, title, body, created_at FROM notes WHERE id = $1 AND user_id = $2`,
		id, user.ID,
	).Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "note not found"})
	}
	if err != nil {
		log.Error().Err(err).Int64("note_id", id).Msg("failed to load note")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load note"})
	}

	return c.JSON(http.StatusOK, n)
}

// Delete removes one note by id.
func (h *NoteHandlers) Delete(c echo.Context) error {
	user := auth.UserFromContext(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid note id"})
	}

	res, err := h.db.Exec(`DELETE FROM notes WHERE id = $1 AND user_id = $2`, id, user.ID)
	if err != nil {
		log.Error().Err(err).Int64("note_id", id).Msg("failed to delete note")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete note"})
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "note not found"})
	}

	return c.NoContent(http.StatusNoContent)
}
