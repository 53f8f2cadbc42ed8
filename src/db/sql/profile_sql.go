package db

import (
	"context"

	"finpilot-server/src/finance"
	"finpilot-server/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const profileColumns = `user_id, display_name, roundup_enabled, roundup_multiplier, roundup_pot_id, xp, level, updated_at`

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.UserID, &p.DisplayName, &p.RoundupEnabled, &p.RoundupMultiplier, &p.RoundupPotID, &p.XP, &p.Level, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// GetOrCreateProfile returns the user's profile, creating a default one on
// first access.
func GetOrCreateProfile(ctx context.Context, q DBTX, userID uuid.UUID) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING ` + profileColumns
	return scanProfile(q.QueryRow(ctx, query, userID))
}

func UpdateProfile(ctx context.Context, q DBTX, p *models.Profile) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (user_id, display_name, roundup_enabled, roundup_multiplier, roundup_pot_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			roundup_enabled = EXCLUDED.roundup_enabled,
			roundup_multiplier = EXCLUDED.roundup_multiplier,
			roundup_pot_id = EXCLUDED.roundup_pot_id,
			updated_at = NOW()
		RETURNING ` + profileColumns
	return scanProfile(q.QueryRow(ctx, query, p.UserID, p.DisplayName, p.RoundupEnabled, p.RoundupMultiplier, p.RoundupPotID))
}

// GrantXP adds xp to the profile and recomputes its level. The profile upsert
// locks the row, so concurrent grants inside transactions serialise.
func GrantXP(ctx context.Context, q DBTX, userID uuid.UUID, xp int) (*models.Profile, error) {
	p, err := GetOrCreateProfile(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	total := p.XP + xp
	query := `
		UPDATE profiles SET xp = $1, level = $2, updated_at = NOW()
		WHERE user_id = $3
		RETURNING ` + profileColumns
	return scanProfile(q.QueryRow(ctx, query, total, finance.LevelForXP(total), userID))
}

const insightColumns = `id, user_id, content, model, created_at`

func CreateInsight(ctx context.Context, q DBTX, insight *models.Insight) (*models.Insight, error) {
	var i models.Insight
	err := q.QueryRow(ctx, `
		INSERT INTO ai_insights (user_id, content, model)
		VALUES ($1, $2, $3)
		RETURNING `+insightColumns,
		insight.UserID, insight.Content, insight.Model,
	).Scan(&i.ID, &i.UserID, &i.Content, &i.Model, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func GetInsights(ctx context.Context, q DBTX, userID uuid.UUID, limit int) ([]models.Insight, error) {
	rows, err := q.Query(ctx, `
		SELECT `+insightColumns+`
		FROM ai_insights WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	insights := []models.Insight{}
	for rows.Next() {
		var i models.Insight
		if err := rows.Scan(&i.ID, &i.UserID, &i.Content, &i.Model, &i.CreatedAt); err != nil {
			return nil, err
		}
		insights = append(insights, i)
	}
	return insights, rows.Err()
}
