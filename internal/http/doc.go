// Package httpapp provides the HTTP JSON API for Antler.
//
//	@title						Antler API
//	@version					1.0
//	@description				A forum backend: users register and authenticate, publish posts,
//	@description				and attach threaded comments to posts.
//	@description
//	@description				## Authentication
//	@description
//	@description				Sessions are stateless JWTs. Register or log in to obtain a token,
//	@description				then send it on write requests:
//	@description				```bash
//	@description				curl -X POST /api/register -d '{"username":"alice","password":"pw123456","email":"alice@x.com"}'
//	@description				# Returns: {"token": "...", "user": {...}}
//	@description				curl -X POST /api/posts -H "Authorization: Bearer TOKEN" -d '{"title":"Hello","content":"World"}'
//	@description				```
//	@description
//	@description				Tokens expire 7 days after issuance. There is no server-side
//	@description				revocation; logging out is a client-side state clear.
//
//	@contact.name				Antler
//	@license.name				MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token from /api/register or /api/login
//
//	@tag.name					Auth
//	@tag.description			Registration and login. Usernames and emails are unique; passwords are stored as bcrypt hashes.
//
//	@tag.name					Posts
//	@tag.description			Publish and browse posts. Posts are immutable once created and can only be deleted by their author.
//
//	@tag.name					Comments
//	@tag.description			Flat, time-ordered comments on posts. A comment may carry reply-target metadata pointing at another comment/user.
//
//	@tag.name					Stats
//	@tag.description			Site-wide counters.
//
//	@tag.name					Health
//	@tag.description			Liveness probe.
package httpapp
