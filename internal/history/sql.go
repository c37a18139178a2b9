package history

const (
	sqlInsertSubmission = `INSERT INTO submissions
		(id, submitted_at, account, requester_name, requester_email,
		 selected_count, submitted_count, status, processed, total_chunks, error, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlInsertItem = `INSERT INTO submission_items (submission_id, position, item_id, name)
		VALUES (?, ?, ?, ?)`

	sqlInsertResult = `INSERT INTO submission_results
		(submission_id, position, filename, status, chunks, reason)
		VALUES (?, ?, ?, ?, ?, ?)`

	submissionColumns = `id, submitted_at, account, requester_name, requester_email,
		selected_count, submitted_count, status, processed, total_chunks, error, source`

	sqlListSubmissions = `SELECT ` + submissionColumns + ` FROM submissions
		ORDER BY submitted_at DESC, id LIMIT ?`

	sqlGetSubmission = `SELECT ` + submissionColumns + ` FROM submissions WHERE id = ?`

	sqlListItems = `SELECT item_id, name FROM submission_items
		WHERE submission_id = ? ORDER BY position`

	sqlListResults = `SELECT filename, status, chunks, reason FROM submission_results
		WHERE submission_id = ? ORDER BY position`
)
