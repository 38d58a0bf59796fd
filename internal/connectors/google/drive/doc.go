// Package drive implements an ingestion source for Google Drive files.
//
// Files are listed with files.list ordered by name and emitted as entities
// keyed by file ID. Folders and trashed files are skipped. The Drive page
// token is the cursor; an expired token cancels the cycle so the next one
// starts from the first page.
//
// Options: folder_ids, mime_types (comma-separated filters), page_size,
// token_env (default GOOGLE_ACCESS_TOKEN), credentials_file, endpoint and
// requests_per_second.
package drive
