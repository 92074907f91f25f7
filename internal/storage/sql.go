package storage

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time DATETIME NOT NULL,
    subject_id TEXT     NOT NULL,
    task_type  TEXT     NOT NULL,
    config     TEXT
);

CREATE TABLE IF NOT EXISTS trials (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id   INTEGER  NOT NULL REFERENCES sessions (id),
    trial_number INTEGER  NOT NULL,
    started_at   DATETIME NOT NULL,
    ended_at     DATETIME,
    duration_s   REAL,
    rmse_x       REAL,
    rmse_y       REAL,
    rmse_total   REAL,
    sample_count INTEGER,
    success      INTEGER
);

CREATE TABLE IF NOT EXISTS samples (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id   INTEGER NOT NULL REFERENCES sessions (id),
    trial_number INTEGER NOT NULL,
    timestamp_us REAL    NOT NULL,
    cursor_x     REAL    NOT NULL,
    cursor_y     REAL    NOT NULL,
    cursor_vx    REAL    NOT NULL,
    cursor_vy    REAL    NOT NULL,
    target_x     REAL    NOT NULL,
    target_y     REAL    NOT NULL,
    error_x      REAL    NOT NULL,
    error_y      REAL    NOT NULL
);`

const initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_trials_session ON trials (session_id, trial_number);
CREATE INDEX IF NOT EXISTS idx_samples_trial ON samples (session_id, trial_number, timestamp_us);`

const insertSessionSQL = `
INSERT INTO sessions (start_time,
                      subject_id,
                      task_type,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

const selectSessionsSQL = `
SELECT id,
       start_time,
       subject_id,
       task_type,
       config
FROM sessions
ORDER BY start_time`

const insertTrialSQL = `
INSERT INTO trials (session_id,
                    trial_number,
                    started_at)
VALUES (?, ?, CURRENT_TIMESTAMP)`

const finishTrialSQL = `
UPDATE trials
SET ended_at     = CURRENT_TIMESTAMP,
    duration_s   = ?,
    rmse_x       = ?,
    rmse_y       = ?,
    rmse_total   = ?,
    sample_count = ?,
    success      = ?
WHERE id = (SELECT id
            FROM trials
            WHERE session_id = ?
              AND trial_number = ?
              AND ended_at IS NULL
            ORDER BY id DESC
            LIMIT 1)`

const insertFinishedTrialSQL = `
INSERT INTO trials (session_id,
                    trial_number,
                    started_at,
                    ended_at,
                    duration_s,
                    rmse_x,
                    rmse_y,
                    rmse_total,
                    sample_count,
                    success)
VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, ?, ?, ?, ?, ?, ?)`

const selectTrialsSQL = `
SELECT id,
       session_id,
       trial_number,
       started_at,
       ended_at,
       duration_s,
       rmse_x,
       rmse_y,
       rmse_total,
       sample_count,
       success
FROM trials
WHERE session_id = ?
  AND ended_at IS NOT NULL
ORDER BY trial_number, id`

const insertSamplesSQL = `
    INSERT INTO samples (
        session_id,
        trial_number,
        timestamp_us,
        cursor_x,
        cursor_y,
        cursor_vx,
        cursor_vy,
        target_x,
        target_y,
        error_x,
        error_y
    )
    VALUES `

const selectSamplesSQL = `
SELECT timestamp_us,
       cursor_x,
       cursor_y,
       cursor_vx,
       cursor_vy,
       target_x,
       target_y,
       error_x,
       error_y
FROM samples
WHERE session_id = ?
  AND trial_number = ?
  AND timestamp_us BETWEEN ? AND ?
ORDER BY timestamp_us, id`

const selectSampleBoundsSQL = `
SELECT COALESCE(MIN(timestamp_us), 0),
       COALESCE(MAX(timestamp_us), 0)
FROM samples
WHERE session_id = ?
  AND trial_number = ?`
