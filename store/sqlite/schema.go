package sqlite

// Times are stored as unix nanoseconds so range filters compare integers.
// Decimals are stored as their exact text form.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	email_notifications BOOLEAN NOT NULL DEFAULT 1,
	messaging_notifications BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	image TEXT NOT NULL DEFAULT '',
	website TEXT NOT NULL DEFAULT '',
	current_price TEXT NOT NULL DEFAULT '0',
	original_price TEXT NOT NULL DEFAULT '0',
	currency TEXT NOT NULL DEFAULT '',
	availability TEXT NOT NULL DEFAULT 'in_stock',
	price_history TEXT NOT NULL DEFAULT '[]',
	oldest_sample_at INTEGER,
	last_checked INTEGER,
	is_active BOOLEAN NOT NULL DEFAULT 1,
	created_at INTEGER,
	updated_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_products_oldest_sample ON products (oldest_sample_at);

CREATE TABLE IF NOT EXISTS trackings (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	target_price TEXT NOT NULL,
	check_frequency TEXT NOT NULL DEFAULT 'daily',
	notify_email BOOLEAN NOT NULL DEFAULT 1,
	notify_messaging BOOLEAN NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'active',
	next_check INTEGER NOT NULL,
	last_notified INTEGER,
	price_alerts TEXT NOT NULL DEFAULT '[]',
	alert_count INTEGER NOT NULL DEFAULT 0,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at INTEGER,
	updated_at INTEGER,
	UNIQUE (user_id, product_id)
);

CREATE INDEX IF NOT EXISTS idx_trackings_due ON trackings (status, next_check);
CREATE INDEX IF NOT EXISTS idx_trackings_alert_count ON trackings (alert_count);
`
