package database

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		email VARCHAR(255) UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		avatar_url VARCHAR(500),
		provider VARCHAR(50) NOT NULL,
		provider_id VARCHAR(255) NOT NULL,
		global_role VARCHAR(50) NOT NULL DEFAULT 'user',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(provider, provider_id)
	)`,

	`CREATE TABLE IF NOT EXISTS login_sessions (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash VARCHAR(255) NOT NULL UNIQUE,
		ip_address VARCHAR(64),
		user_agent TEXT,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS organizers (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		organizer_id UUID NOT NULL REFERENCES organizers(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(255) UNIQUE NOT NULL,
		location VARCHAR(255) NOT NULL DEFAULT '',
		start_date DATE NOT NULL,
		is_published BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS races (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		distance_km NUMERIC(7,2) NOT NULL DEFAULT 0,
		starts_at TIMESTAMP WITH TIME ZONE NOT NULL,
		max_participants INTEGER NOT NULL DEFAULT 0,
		team_min_members INTEGER NOT NULL DEFAULT 2,
		team_max_members INTEGER NOT NULL DEFAULT 6,
		team_modify_deadline_days INTEGER NOT NULL DEFAULT 7,
		waiver_template_id UUID,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS registrations (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		race_id UUID NOT NULL REFERENCES races(id) ON DELETE CASCADE,
		first_name VARCHAR(255) NOT NULL,
		last_name VARCHAR(255) NOT NULL,
		gender VARCHAR(3) NOT NULL DEFAULT 'any',
		bib_number INTEGER,
		price_paid_cents INTEGER NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL DEFAULT 'confirmed',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS cart_reservations (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		race_id UUID NOT NULL REFERENCES races(id) ON DELETE CASCADE,
		session_token VARCHAR(255) NOT NULL,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS waitlist_entries (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		race_id UUID NOT NULL REFERENCES races(id) ON DELETE CASCADE,
		event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		email VARCHAR(255) NOT NULL,
		first_name VARCHAR(255) NOT NULL,
		last_name VARCHAR(255) NOT NULL,
		phone VARCHAR(50),
		session_token VARCHAR(255) NOT NULL,
		position INTEGER NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'waiting',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_waitlist_entries_waiting_email
		ON waitlist_entries(race_id, lower(email)) WHERE status = 'waiting'`,

	`CREATE TABLE IF NOT EXISTS bib_exchange_settings (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		event_id UUID NOT NULL UNIQUE REFERENCES events(id) ON DELETE CASCADE,
		is_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		transfer_opens_at TIMESTAMP WITH TIME ZONE,
		transfer_deadline TIMESTAMP WITH TIME ZONE,
		timepulse_fee_cents INTEGER NOT NULL DEFAULT 500,
		allow_gender_mismatch BOOLEAN NOT NULL DEFAULT FALSE,
		rules_text TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS bib_exchange_listings (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		race_id UUID NOT NULL REFERENCES races(id) ON DELETE CASCADE,
		registration_id UUID NOT NULL REFERENCES registrations(id) ON DELETE CASCADE,
		seller_user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		bib_number INTEGER,
		original_price_cents INTEGER NOT NULL,
		sale_price_cents INTEGER NOT NULL,
		seller_refund_cents INTEGER NOT NULL CHECK (seller_refund_cents >= 0),
		gender_required VARCHAR(3) NOT NULL DEFAULT 'any',
		status VARCHAR(20) NOT NULL DEFAULT 'available',
		listed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		sold_at TIMESTAMP WITH TIME ZONE,
		cancelled_at TIMESTAMP WITH TIME ZONE
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_bib_listings_available_registration
		ON bib_exchange_listings(registration_id) WHERE status = 'available'`,
	`CREATE INDEX IF NOT EXISTS idx_bib_listings_event_id ON bib_exchange_listings(event_id)`,

	`CREATE TABLE IF NOT EXISTS bib_exchange_transfers (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		listing_id UUID NOT NULL UNIQUE REFERENCES bib_exchange_listings(id),
		buyer_email VARCHAR(255) NOT NULL,
		seller_refund_cents INTEGER NOT NULL,
		seller_refund_status VARCHAR(20) NOT NULL DEFAULT 'pending',
		buyer_payment_cents INTEGER NOT NULL,
		buyer_payment_status VARCHAR(20) NOT NULL DEFAULT 'paid',
		timepulse_fee_cents INTEGER NOT NULL,
		transferred_at TIMESTAMP WITH TIME ZONE NOT NULL,
		refund_completed_at TIMESTAMP WITH TIME ZONE
	)`,

	`CREATE TABLE IF NOT EXISTS bib_exchange_alerts (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		race_id UUID REFERENCES races(id) ON DELETE CASCADE,
		email VARCHAR(255) NOT NULL,
		gender VARCHAR(3) NOT NULL DEFAULT 'any',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(event_id, race_id, email)
	)`,

	`CREATE TABLE IF NOT EXISTS bib_exchange_alert_deliveries (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		listing_id UUID NOT NULL REFERENCES bib_exchange_listings(id) ON DELETE CASCADE,
		alert_id UUID NOT NULL REFERENCES bib_exchange_alerts(id) ON DELETE CASCADE,
		email VARCHAR(255) NOT NULL,
		status VARCHAR(20) NOT NULL,
		error TEXT,
		attempts INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(listing_id, alert_id)
	)`,

	`CREATE TABLE IF NOT EXISTS teams (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		race_id UUID NOT NULL REFERENCES races(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		team_type VARCHAR(50) NOT NULL DEFAULT 'mixed',
		captain_user_id UUID NOT NULL REFERENCES users(id),
		captain_email VARCHAR(255) NOT NULL,
		captain_phone VARCHAR(50) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		min_members INTEGER NOT NULL,
		max_members INTEGER NOT NULL,
		current_members_count INTEGER NOT NULL DEFAULT 0,
		payment_mode VARCHAR(20) NOT NULL DEFAULT 'individual',
		can_modify_until TIMESTAMP WITH TIME ZONE NOT NULL,
		bib_numbers INTEGER[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS team_members (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		team_id UUID NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		entry_id UUID REFERENCES registrations(id),
		role VARCHAR(20) NOT NULL DEFAULT 'member',
		position INTEGER NOT NULL,
		status VARCHAR(30) NOT NULL DEFAULT 'joined',
		joined_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(team_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_team_members_team_id ON team_members(team_id)`,

	`CREATE TABLE IF NOT EXISTS team_invitations (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		team_id UUID NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		invitation_code VARCHAR(16) NOT NULL UNIQUE,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		max_uses INTEGER NOT NULL,
		uses INTEGER NOT NULL DEFAULT 0,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS waiver_templates (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		race_id UUID NOT NULL REFERENCES races(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_by UUID REFERENCES users(id),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_waiver_templates_race_id ON waiver_templates(race_id)`,

	`CREATE TABLE IF NOT EXISTS waiver_checkboxes (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		template_id UUID NOT NULL REFERENCES waiver_templates(id) ON DELETE CASCADE,
		label TEXT NOT NULL,
		field_type VARCHAR(20) NOT NULL DEFAULT 'checkbox',
		options TEXT[] NOT NULL DEFAULT '{}',
		is_required BOOLEAN NOT NULL DEFAULT TRUE,
		is_blocking BOOLEAN NOT NULL DEFAULT FALSE,
		expected_value TEXT,
		blocking_message TEXT,
		display_order INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS waiver_acceptances (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		template_id UUID NOT NULL REFERENCES waiver_templates(id),
		race_id UUID NOT NULL REFERENCES races(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		answers JSONB NOT NULL DEFAULT '{}',
		accepted_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS email_templates (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		template_key VARCHAR(100) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL,
		subject VARCHAR(255) NOT NULL,
		html_body TEXT NOT NULL,
		text_body TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		updated_by UUID REFERENCES users(id),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS activity_logs (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_id UUID REFERENCES users(id) ON DELETE SET NULL,
		module VARCHAR(50) NOT NULL,
		action VARCHAR(50) NOT NULL,
		details JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_logs_created_at ON activity_logs(created_at DESC)`,

	`INSERT INTO email_templates (template_key, name, subject, html_body, text_body)
	VALUES ('team_invitation', 'Code d''invitation équipe',
		'Votre équipe {{team_name}} est créée',
		'<p>Bonjour,</p><p>Votre équipe <strong>{{team_name}}</strong> est créée. Partagez ce code avec vos coéquipiers : <strong>{{invitation_code}}</strong></p><p>Il expire le {{expires_at}}.</p>',
		'Votre équipe {{team_name}} est créée. Code : {{invitation_code}} (expire le {{expires_at}}).')
	ON CONFLICT (template_key) DO NOTHING`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
