package embedding

// TaskType selects the GenAI embedding task type for a given operation,
// adapted from codenerd's intelligent task-type selector
// (internal/embedding/task_selector.go) and narrowed to the two cases the
// Memory Manager needs: embedding content on Add/Update, and embedding a
// query on Search.
func TaskType(isQuery bool) string {
	if isQuery {
		return "RETRIEVAL_QUERY"
	}
	return "RETRIEVAL_DOCUMENT"
}
