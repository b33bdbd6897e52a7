package entity

// ContactRequest is a student's request to a tutor; it scopes exactly one conversation
type ContactRequest struct {
	Id        string `json:"id"`
	StudentId string `json:"student_id"`
	TutorId   string `json:"tutor_id"`
	Subject   string `json:"subject"`
	CreatedAt int64  `json:"created_at"`
}

// Involves reports whether userId is the student or the tutor of the request
func (r *ContactRequest) Involves(userId string) bool {
	return userId != "" && (userId == r.StudentId || userId == r.TutorId)
}
