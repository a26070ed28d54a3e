// Package swagger embeds the OpenAPI document of the HTTP API.
package swagger

import _ "embed"

// DocPath is the route the document is served on.
const DocPath = "/openapi/users.json"

//go:embed users.swagger.json
var usersDoc []byte

// UsersJSON returns the OpenAPI document.
func UsersJSON() []byte {
	return usersDoc
}
