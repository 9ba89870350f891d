// Package postgres implements the PostgreSQL persistence layer.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PROGRESSION
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create progression tables
-- Version: 001

-- Denormalized per-user progression state. The XP ledger is the source of
-- truth; this row exists for cheap reads and carries the chain tip that
-- serializes ledger appends (SELECT ... FOR UPDATE).
CREATE TABLE IF NOT EXISTS user_progression (
    user_id UUID PRIMARY KEY,
    level INTEGER NOT NULL DEFAULT 1,
    total_xp BIGINT NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    debuff_active_until TIMESTAMP WITH TIME ZONE,
    return_state VARCHAR(10) NOT NULL DEFAULT 'INACTIVE',
    return_day INTEGER NOT NULL DEFAULT 0,
    last_activity_at TIMESTAMP WITH TIME ZONE,
    last_closed_day VARCHAR(10) NOT NULL DEFAULT '',
    last_event_hash TEXT NOT NULL DEFAULT 'genesis',
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_level CHECK (level >= 1),
    CONSTRAINT valid_total_xp CHECK (total_xp >= 0),
    CONSTRAINT valid_streaks CHECK (current_streak >= 0 AND longest_streak >= current_streak),
    CONSTRAINT valid_return_state CHECK (return_state IN ('INACTIVE', 'OFFERED', 'ACTIVE')),
    CONSTRAINT valid_return_day CHECK (return_day >= 0 AND return_day <= 3)
);

CREATE INDEX IF NOT EXISTS idx_progression_last_activity ON user_progression(last_activity_at);
CREATE INDEX IF NOT EXISTS idx_progression_return_state ON user_progression(return_state) WHERE return_state != 'INACTIVE';

-- Append-only XP ledger. Rows are never updated or deleted; corrections are
-- new compensating events. The hash chain makes tampering detectable.
CREATE TABLE IF NOT EXISTS xp_events (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    source VARCHAR(30) NOT NULL,
    source_id VARCHAR(100) NOT NULL DEFAULT '',
    base_amount BIGINT NOT NULL,
    final_amount BIGINT NOT NULL,
    level_before INTEGER NOT NULL,
    level_after INTEGER NOT NULL,
    total_xp_before BIGINT NOT NULL,
    total_xp_after BIGINT NOT NULL,
    hash TEXT NOT NULL,
    previous_hash TEXT NOT NULL,
    modifiers JSONB NOT NULL DEFAULT '[]'::jsonb,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_event_total CHECK (total_xp_after >= 0),
    CONSTRAINT valid_event_amount CHECK (base_amount != 0)
);

-- One chain per user: a given previous hash can be extended exactly once.
CREATE UNIQUE INDEX IF NOT EXISTS idx_xp_events_chain ON xp_events(user_id, previous_hash);
CREATE INDEX IF NOT EXISTS idx_xp_events_user_created ON xp_events(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_xp_events_source ON xp_events(source, source_id);

-- Closed day summaries. The (user_id, day) primary key is the idempotency
-- guard for day closes.
CREATE TABLE IF NOT EXISTS day_summaries (
    user_id UUID NOT NULL,
    day VARCHAR(10) NOT NULL,
    satisfied BOOLEAN NOT NULL,
    quests_total INTEGER NOT NULL DEFAULT 0,
    quests_done INTEGER NOT NULL DEFAULT 0,
    streak_after INTEGER NOT NULL DEFAULT 0,
    debuff_applied BOOLEAN NOT NULL DEFAULT FALSE,
    closed_at TIMESTAMP WITH TIME ZONE NOT NULL,

    PRIMARY KEY (user_id, day)
);

CREATE INDEX IF NOT EXISTS idx_day_summaries_day ON day_summaries(day);
`

const migration001Down = `
DROP TABLE IF EXISTS day_summaries;
DROP TABLE IF EXISTS xp_events;
DROP TABLE IF EXISTS user_progression;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE QUESTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create quest tables
-- Version: 002

-- Static quest definitions. Requirements are stored as the JSON expression
-- tree and parsed on load.
CREATE TABLE IF NOT EXISTS quest_templates (
    id VARCHAR(50) PRIMARY KEY,
    title VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    requirement JSONB NOT NULL,
    base_xp BIGINT NOT NULL,
    base_target DOUBLE PRECISION NOT NULL DEFAULT 0,
    period_type VARCHAR(10) NOT NULL,
    core BOOLEAN NOT NULL DEFAULT FALSE,
    allow_partial BOOLEAN NOT NULL DEFAULT FALSE,
    min_partial_percent INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_base_xp CHECK (base_xp > 0),
    CONSTRAINT valid_period_type CHECK (period_type IN ('daily', 'weekly')),
    CONSTRAINT valid_min_partial CHECK (min_partial_percent >= 0 AND min_partial_percent <= 100)
);

CREATE INDEX IF NOT EXISTS idx_templates_core ON quest_templates(core) WHERE core = TRUE;

-- Per-user, per-period quest instances.
CREATE TABLE IF NOT EXISTS quest_instances (
    id UUID PRIMARY KEY,
    template_id VARCHAR(50) NOT NULL REFERENCES quest_templates(id),
    user_id UUID NOT NULL,
    period_type VARCHAR(10) NOT NULL,
    period_key VARCHAR(10) NOT NULL,
    status VARCHAR(10) NOT NULL DEFAULT 'ACTIVE',
    current_value DOUBLE PRECISION NOT NULL DEFAULT 0,
    target_value DOUBLE PRECISION NOT NULL DEFAULT 0,
    completion_percent INTEGER NOT NULL DEFAULT 0,
    partial BOOLEAN NOT NULL DEFAULT FALSE,
    xp_awarded BIGINT NOT NULL DEFAULT 0,
    xp_event_id VARCHAR(36) NOT NULL DEFAULT '',
    completed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('ACTIVE', 'COMPLETED', 'FAILED', 'SKIPPED')),
    CONSTRAINT valid_completion CHECK (completion_percent >= 0 AND completion_percent <= 100),

    -- One instance per (user, template, period).
    CONSTRAINT uniq_instance_period UNIQUE (user_id, template_id, period_type, period_key)
);

CREATE INDEX IF NOT EXISTS idx_instances_user_period ON quest_instances(user_id, period_type, period_key);
CREATE INDEX IF NOT EXISTS idx_instances_history ON quest_instances(user_id, template_id, completed_at) WHERE completed_at IS NOT NULL;
`

const migration002Down = `
DROP TABLE IF EXISTS quest_instances;
DROP TABLE IF EXISTS quest_templates;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE ADAPTED TARGETS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create adapted targets
-- Version: 003

-- Personalized numeric targets per (user, template). Created lazily on the
-- first adaptation or manual override.
CREATE TABLE IF NOT EXISTS adapted_targets (
    user_id UUID NOT NULL,
    template_id VARCHAR(50) NOT NULL REFERENCES quest_templates(id),
    base_target DOUBLE PRECISION NOT NULL,
    adapted_target DOUBLE PRECISION NOT NULL,
    manual_override BOOLEAN NOT NULL DEFAULT FALSE,
    completion_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    average_achievement DOUBLE PRECISION NOT NULL DEFAULT 0,
    last_adapted_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, template_id),

    CONSTRAINT valid_targets CHECK (base_target > 0 AND adapted_target > 0)
);
`

const migration003Down = `
DROP TABLE IF EXISTS adapted_targets;
`

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_progression",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_quests",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_adapted_targets",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}
