// Package auth provides authentication and authorisation for Station PM.
//
// It implements a 3-tier role model (technician → supervisor → admin) with:
//   - Argon2id password hashing (PHC string format)
//   - Short-lived JWT access tokens (HS256, signature-only validation)
//   - Rotating refresh tokens with family-based theft detection
//
// Technicians upload diagnostic exports, commit imports, and run their own
// maintenance visits. Supervisors additionally review and sign off completed
// visits and maintain the procedure library. Admins manage user accounts and
// perform destructive operations.
//
// Access tokens carry the user's role so per-request authorisation never
// touches the database. Refresh tokens are stored hashed (SHA-256); reuse of
// a rotated token revokes the whole token family.
package auth
