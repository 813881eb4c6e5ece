package domain

import "github.com/supabase-community/supabase-go"

// SupabaseClient exposes the PostgREST client used by the usage repository.
type SupabaseClient interface {
	Initialize() error
	DB() *supabase.Client
}
