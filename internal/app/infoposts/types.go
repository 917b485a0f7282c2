package infoposts

type CreateInfoPostInput struct {
	Category string   `json:"category" validate:"required,oneof=housing classes food transport money campus"`
	Title    string   `json:"title" validate:"required,min=5,max=120"`
	Content  string   `json:"content" validate:"required,min=10,max=5000"`
	Tags     []string `json:"tags" validate:"max=5,dive,max=30"`
}
