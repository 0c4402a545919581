// Package github implements a connector for GitHub issues.
//
// The connector indexes the issues of the repositories named in the source
// configuration, each with its comment thread attached. Pull requests share
// the issues endpoint and are skipped.
//
// # Authentication
//
// A personal access token (classic or fine-grained) is sent as a bearer
// token. Private repositories need the 'repo' scope. Authenticated requests
// get 5,000 API calls per hour.
//
// # Configuration
//
// Source configuration accepts the following keys:
//
//   - repos: comma-separated owner/name list. Required.
//   - token: the access token. Required.
//   - state: open, closed or all. Default: all.
//   - max_pages: pages of 100 issues per repository. Default: 100.
//   - exclude_bots: skip issues and comments by bot accounts. Default: true.
//   - base_url: GitHub Enterprise API root. Default: api.github.com.
//
// # Rate Limiting
//
// The connector implements a dual-strategy rate limiting approach:
//
//  1. Proactive throttling: a token bucket algorithm limits requests to
//     approximately 1.2 requests per second, staying well under the 5,000/hour
//     limit whilst maximising throughput.
//
//  2. Reactive handling: the connector monitors X-RateLimit-Remaining and
//     X-RateLimit-Reset headers. When limits are exhausted, it waits until
//     the reset time before continuing.
//
// # Error Handling
//
// A failed issue page ends pagination for that repository and a failed
// comment listing skips that issue. Both are reported on the error channel
// as [domain.ErrSourceFetch], which marks the run truncated; the remaining
// repositories are still fetched.
//
// # Document Structure
//
// Each issue is emitted with source id {owner}/{repo}#{number} and MIME type
// application/vnd.github.issue+json. The content is a JSON envelope with the
// title, the markdown body and the comments.
package github
