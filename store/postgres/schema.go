package postgres

// Schema is the DDL applied by [Store.Migrate].
//
// The partial unique index on user_memberships keeps at most one ACTIVE
// membership per (user, group).
const Schema = `
create table if not exists roles (
	key          text primary key,
	display_name text not null default '',
	is_system    boolean not null default false
);

create table if not exists role_permissions (
	role_key       text not null references roles(key) on delete cascade,
	permission_key text not null,
	primary key (role_key, permission_key)
);

create table if not exists role_includes (
	role_key    text not null references roles(key) on delete cascade,
	include_key text not null references roles(key) on delete cascade,
	primary key (role_key, include_key)
);

create table if not exists membership_tiers (
	group_key  text not null,
	tier_key   text not null,
	sort_order integer not null default 0,
	primary key (group_key, tier_key)
);

create table if not exists tier_permissions (
	group_key      text not null,
	tier_key       text not null,
	permission_key text not null,
	primary key (group_key, tier_key, permission_key),
	foreign key (group_key, tier_key) references membership_tiers(group_key, tier_key) on delete cascade
);

create table if not exists role_assignments (
	user_id     text not null,
	role_key    text not null references roles(key),
	assigned_by text not null default '',
	assigned_at timestamptz not null,
	expires_at  timestamptz,
	primary key (user_id, role_key)
);

create table if not exists user_memberships (
	id           bigserial primary key,
	user_id      text not null,
	group_key    text not null,
	tier_key     text not null,
	status       text not null,
	started_at   timestamptz not null,
	expires_at   timestamptz,
	cancelled_at timestamptz,
	foreign key (group_key, tier_key) references membership_tiers(group_key, tier_key)
);

create unique index if not exists user_memberships_one_active
	on user_memberships (user_id, group_key) where status = 'ACTIVE';

create table if not exists audit_log (
	id             uuid primary key,
	event_type     text not null,
	actor_id       text not null default '',
	target_user_id text not null default '',
	details        jsonb not null default '{}',
	created_at     timestamptz not null
);
`
