package api

// RecipeRefRequest is the body of POST /recipes/delete and POST /recipes/copy.
// ID is decoded loosely so numeric ids match the way they are stored.
type RecipeRefRequest struct {
	ID          any    `json:"id"`
	AccessToken string `json:"accessToken"`
}

// MessageResponse acknowledges an operation that returns no recipe.
type MessageResponse struct {
	Message string `json:"message"`
}
