package storage

const schema = `
-- One scheduling record per (user, word) pair. State/step/stability/difficulty
-- mirror the scheduler's card fields; step and the memory parameters are NULL
-- until the scheduler first sets them.
CREATE TABLE IF NOT EXISTS cards (
    user_id     TEXT NOT NULL,
    word        TEXT NOT NULL,
    card_id     INTEGER NOT NULL,
    state       INTEGER NOT NULL DEFAULT 1, -- 1: Learning, 2: Review, 3: Relearning
    step        INTEGER,
    stability   REAL,
    difficulty  REAL,
    due         DATETIME NOT NULL,
    last_review DATETIME,
    created_at  DATETIME NOT NULL,

    PRIMARY KEY (user_id, word)
);

CREATE INDEX IF NOT EXISTS idx_cards_user_due ON cards (user_id, due);

-- Append-only review history, one row per completed review.
CREATE TABLE IF NOT EXISTS review_logs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id         TEXT NOT NULL,
    card_id         INTEGER NOT NULL,
    word            TEXT NOT NULL,
    rating          INTEGER NOT NULL,
    review_datetime DATETIME NOT NULL,
    state_before    INTEGER NOT NULL,
    due_before      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_logs_user_word ON review_logs (user_id, word);
`
