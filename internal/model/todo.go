package model

// TodoItem is a single task record. Attribute names are shared between the
// JSON API and the DynamoDB item.
type TodoItem struct {
	UserID        string `json:"userId" dynamodbav:"userId"`
	TodoID        string `json:"todoId" dynamodbav:"todoId"`
	CreatedAt     string `json:"createdAt" dynamodbav:"createdAt"`
	Name          string `json:"name" dynamodbav:"name"`
	DueDate       string `json:"dueDate" dynamodbav:"dueDate"`
	Done          bool   `json:"done" dynamodbav:"done"`
	AttachmentURL string `json:"attachmentUrl,omitempty" dynamodbav:"attachmentUrl,omitempty"`
}

// OwnedBy reports whether the item belongs to userID.
func (t TodoItem) OwnedBy(userID string) bool {
	return userID != "" && t.UserID == userID
}

func (t TodoItem) HasAttachment() bool {
	return t.AttachmentURL != ""
}

// TodoUpdate holds the mutable fields of a TodoItem.
type TodoUpdate struct {
	Name    string `json:"name" dynamodbav:"name"`
	DueDate string `json:"dueDate" dynamodbav:"dueDate"`
	Done    bool   `json:"done" dynamodbav:"done"`
}
