package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/jadewok-pos/api/internal/auth"
	"github.com/jadewok-pos/api/internal/enum"
)

// tokenTTLSeconds matches the token expiry set by the auth package.
const tokenTTLSeconds = 15 * 60

// AuthHandler handles dashboard login. Staff sign in with a shared
// passcode per role rather than individual accounts.
type AuthHandler struct {
	jwtSecret           string
	staffPasscodeHash   string
	managerPasscodeHash string
}

// NewAuthHandler creates a new AuthHandler. The passcode hashes are
// bcrypt hashes from configuration; an empty hash disables that role.
func NewAuthHandler(jwtSecret, staffPasscodeHash, managerPasscodeHash string) *AuthHandler {
	return &AuthHandler{
		jwtSecret:           jwtSecret,
		staffPasscodeHash:   staffPasscodeHash,
		managerPasscodeHash: managerPasscodeHash,
	}
}

type loginRequest struct {
	Passcode string `json:"passcode"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Passcode == "" {
		writeError(w, http.StatusBadRequest, "passcode is required")
		return
	}

	role, ok := h.matchPasscode(req.Passcode)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid passcode")
		return
	}

	token, err := auth.GenerateToken(h.jwtSecret, role, role)
	if err != nil {
		log.Printf("ERROR: generate token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"token":      token,
		"role":       role,
		"expires_in": tokenTTLSeconds,
	})
}

// matchPasscode checks the passcode against the manager hash first so a
// manager passcode always grants the stronger role.
func (h *AuthHandler) matchPasscode(passcode string) (string, bool) {
	if h.managerPasscodeHash != "" &&
		bcrypt.CompareHashAndPassword([]byte(h.managerPasscodeHash), []byte(passcode)) == nil {
		return enum.RoleManager, true
	}
	if h.staffPasscodeHash != "" &&
		bcrypt.CompareHashAndPassword([]byte(h.staffPasscodeHash), []byte(passcode)) == nil {
		return enum.RoleStaff, true
	}
	return "", false
}

// --- Shared response helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}
