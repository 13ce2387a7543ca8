package mcpserver

// RecipeFormat describes the recipe objects LLM consumers read and write.
const RecipeFormat = `# Recipe Format

A recipe is a single JSON object. Only three fields mean anything to recipebox;
every other field is stored and returned exactly as given.

| Field      | Type             | Meaning                                                    |
|------------|------------------|------------------------------------------------------------|
| id         | string or number | Identity. Upserting an existing id replaces that recipe.   |
| title      | string           | Display name. Copies get " (Copy)" appended.               |
| imageUrl   | string           | Set by the server when an image is uploaded. Do not set.   |

## Example

` + "```" + `json
{
  "id": "r-42",
  "title": "Tomato Soup",
  "servings": 4,
  "ingredients": ["tomatoes", "onion", "stock"],
  "steps": ["Chop", "Simmer", "Blend"]
}
` + "```" + `

## Rules

1. Send one JSON object, never an array.
2. Omitting id always appends a new recipe; such recipes cannot be
   deleted or copied later.
3. Copies receive a fresh server-generated id.
4. Images go in the upsert_recipe "image" argument as a base64 data URI.
`
