// File: internal/admission/doc.go
// Package admission implements the request pipeline's admission checks:
// an IP allow-list, token-bucket rate limiting, bearer/JWT authentication,
// and CORS.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package admission
