package users

type RegisterMeInput struct {
	DisplayName string `json:"displayName" validate:"required,max=80"`
}
