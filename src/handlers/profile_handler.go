package handlers

import (
	"context"
	"net/http"
	"strings"

	"finpilot-server/src/cache"
	db "finpilot-server/src/db/sql"
	"finpilot-server/src/finance"
	"finpilot-server/src/middleware"
	"finpilot-server/src/models"

	"github.com/google/uuid"
)

func GetProfile(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		profile, err := cached(env, r, cache.KeyProfile, "profile", nil, nil,
			func(ctx context.Context) (*models.Profile, error) {
				return db.GetOrCreateProfile(ctx, env.DB, userID)
			})
		if err != nil {
			fail(w, r, err, "Failed to retrieve profile")
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// UpdateProfile changes the display name and round-up settings. Fields left
// out of the request keep their current value.
func UpdateProfile(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req struct {
			DisplayName       *string `json:"display_name"`
			RoundupEnabled    *bool   `json:"roundup_enabled"`
			RoundupMultiplier *int    `json:"roundup_multiplier"`
			RoundupPotID      *string `json:"roundup_pot_id"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		profile, err := db.GetOrCreateProfile(r.Context(), env.DB, userID)
		if err != nil {
			fail(w, r, err, "Failed to load profile")
			return
		}
		if req.DisplayName != nil {
			profile.DisplayName = strings.TrimSpace(*req.DisplayName)
		}
		if req.RoundupEnabled != nil {
			profile.RoundupEnabled = *req.RoundupEnabled
		}
		if req.RoundupMultiplier != nil {
			m := *req.RoundupMultiplier
			if m < finance.MinRoundupMultiplier || m > finance.MaxRoundupMultiplier {
				http.Error(w, finance.ErrInvalidMultiplier.Error(), http.StatusBadRequest)
				return
			}
			profile.RoundupMultiplier = m
		}
		if req.RoundupPotID != nil {
			if *req.RoundupPotID == "" {
				profile.RoundupPotID = nil
			} else {
				potID, err := uuid.Parse(*req.RoundupPotID)
				if err != nil {
					http.Error(w, "invalid roundup_pot_id", http.StatusBadRequest)
					return
				}
				profile.RoundupPotID = &potID
			}
		}

		updated, err := db.UpdateProfile(r.Context(), env.DB, profile)
		if err != nil {
			fail(w, r, err, "Failed to update profile")
			return
		}
		mutated(env, r, cache.ProfileUpdate)
		writeJSON(w, http.StatusOK, updated)
	}
}
