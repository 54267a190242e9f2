package sqlite

const createTables = `
CREATE TABLE IF NOT EXISTS conversations (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
  id TEXT PRIMARY KEY,
  conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  role TEXT NOT NULL,
  content TEXT NOT NULL,
  timestamp INTEGER NOT NULL,
  token_count INTEGER,
  source_file TEXT
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, position);`

const upsertConversation = `
INSERT INTO conversations (id, title, created_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  title = excluded.title,
  created_at = excluded.created_at,
  updated_at = excluded.updated_at;`

const selectConversationByID = `
SELECT id, title, created_at, updated_at
FROM conversations
WHERE id = ?;`

const selectConversations = `
SELECT id, title, created_at, updated_at
FROM conversations
ORDER BY updated_at DESC, id ASC;`

const updateConversationTitle = `
UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?;`

const touchConversation = `
UPDATE conversations SET updated_at = ? WHERE id = ?;`

const deleteConversationByID = `
DELETE FROM conversations WHERE id = ?;`

const insertMessage = `
INSERT INTO messages (id, conversation_id, position, role, content, timestamp, token_count, source_file)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);`

const selectNextPosition = `
SELECT COALESCE(MAX(position) + 1, 0) FROM messages WHERE conversation_id = ?;`

const selectMessagesByConversation = `
SELECT id, role, content, timestamp, token_count, source_file
FROM messages
WHERE conversation_id = ?
ORDER BY position ASC;`

const deleteMessageByID = `
DELETE FROM messages WHERE conversation_id = ? AND id = ?;`

const deleteMessagesByConversation = `
DELETE FROM messages WHERE conversation_id = ?;`
