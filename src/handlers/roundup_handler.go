package handlers

import (
	"context"
	"errors"
	"net/http"

	"finpilot-server/src/cache"
	db "finpilot-server/src/db/sql"
	"finpilot-server/src/finance"
	"finpilot-server/src/middleware"
	"finpilot-server/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	errRoundupsDisabled = errors.New("round-ups are disabled")
	errNoRoundupPot     = errors.New("no round-up pot selected")
	errNothingToSweep   = errors.New("nothing to sweep")
)

func previewFor(ctx context.Context, q db.DBTX, userID uuid.UUID) (*models.Profile, finance.RoundUpPreview, error) {
	profile, err := db.GetOrCreateProfile(ctx, q, userID)
	if err != nil {
		return nil, finance.RoundUpPreview{}, err
	}
	txns, err := db.GetUnsweptDebits(ctx, q, userID)
	if err != nil {
		return nil, finance.RoundUpPreview{}, err
	}
	preview, err := finance.PreviewRoundUps(txns, profile.RoundupMultiplier)
	return profile, preview, err
}

func GetRoundupPreview(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		preview, err := cached(env, r, cache.KeyRoundups, "roundups/preview", nil, nil,
			func(ctx context.Context) (finance.RoundUpPreview, error) {
				_, preview, err := previewFor(ctx, env.DB, userID)
				return preview, err
			})
		if err != nil {
			fail(w, r, err, "Failed to preview round-ups")
			return
		}
		writeJSON(w, http.StatusOK, preview)
	}
}

// SweepRoundups moves the previewed round-up total into the profile's
// round-up pot. Preview and sweep run in one transaction, so the amount
// deposited always matches the transactions marked.
func SweepRoundups(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())

		var sweep *models.RoundupSweep
		err := pgx.BeginFunc(r.Context(), env.DB, func(tx pgx.Tx) error {
			profile, preview, err := previewFor(r.Context(), tx, userID)
			if err != nil {
				return err
			}
			switch {
			case !profile.RoundupEnabled:
				return errRoundupsDisabled
			case profile.RoundupPotID == nil:
				return errNoRoundupPot
			case len(preview.Items) == 0:
				return errNothingToSweep
			}

			sweep, err = db.RecordRoundupSweep(r.Context(), tx, &models.RoundupSweep{
				UserID:         userID,
				PotID:          *profile.RoundupPotID,
				Amount:         preview.Total,
				TransactionIDs: preview.TransactionIDs(),
			})
			if err != nil {
				return err
			}
			_, err = db.GrantXP(r.Context(), tx, userID, finance.XPRoundupSweep)
			return err
		})
		switch {
		case errors.Is(err, errRoundupsDisabled), errors.Is(err, errNoRoundupPot), errors.Is(err, errNothingToSweep):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case err != nil:
			fail(w, r, err, "Failed to sweep round-ups")
			return
		}

		mutated(env, r, cache.RoundupSweep)
		writeJSON(w, http.StatusCreated, sweep)
	}
}
