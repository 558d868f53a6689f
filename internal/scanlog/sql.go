package scanlog

import (
	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

// Indexes are created on Close so inserts stay cheap while the scan
// is running.
const initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_readings_session_freq ON readings (session_id, frequency);
CREATE INDEX IF NOT EXISTS idx_recordings_session ON recordings (session_id)`

const (
	insertSessionSQL = `
INSERT INTO sessions (started_at,
                      host,
                      kind,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionsSQL = `
SELECT id,
       started_at,
       host,
       kind,
       config
FROM sessions
ORDER BY started_at`

	insertReadingSQL = `
INSERT INTO readings (session_id,
                      ts,
                      frequency,
                      mode,
                      name,
                      level,
                      is_new_max)
VALUES `

	insertRecordingSQL = `
INSERT INTO recordings (session_id,
                        frequency,
                        started_at)
VALUES (?, ?, ?)`

	updateRecordingSQL = `
UPDATE recordings
SET ended_at = ?
WHERE id = ?`

	selectRecordingsSQL = `
SELECT id,
       frequency,
       started_at,
       ended_at
FROM recordings
WHERE session_id = ?
ORDER BY started_at`
)
