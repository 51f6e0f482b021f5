package sqlite3

const CreateRunTable = `
    CREATE TABLE IF NOT EXISTS run (
        id          TEXT PRIMARY KEY,
        started_at  TEXT,
        library     TEXT,
        token_label TEXT
    )`

const CreateResultTable = `
    CREATE TABLE IF NOT EXISTS result (
        run_id      TEXT,
        seq         INTEGER,
        case_name   TEXT,
        status      TEXT,
        detail      TEXT,
        elapsed_ns  INTEGER,
        PRIMARY KEY (run_id, seq)
    )`

const InsertRunQuery = `
    INSERT INTO run (id, started_at, library, token_label)
    VALUES (?, ?, ?, ?)
`

const InsertResultQuery = `
    INSERT INTO result (run_id, seq, case_name, status, detail, elapsed_ns)
    VALUES (?, ?, ?, ?, ?, ?)
`

const NextSeqQuery = `
    SELECT COALESCE(MAX(seq), 0) + 1 FROM result WHERE run_id = ?
`

const GetResultsQuery = `
    SELECT case_name, status, detail, elapsed_ns
    FROM result
    WHERE run_id = ?
    ORDER BY seq
`

var CreateStmts = []string{CreateRunTable, CreateResultTable}
