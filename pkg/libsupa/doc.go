//
// libsupa is a client that interacts with a hosted table datastore (PostgREST REST surface
// and Phoenix realtime channels) for syncing notes.
//

// Create client
//
//	client, err := libsupa.NewDefaultClient("https://project.supabase.co", anonkey)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Read rows
//
//	var notes []model.Note
//	q := libsupa.NewQuery().
//		Eq("anonymous_user_id", anonymousUserID).
//		Eq("is_deleted", false).
//		Order("updated_at", false)
//
//	err = client.Select(ctx, "notes", q, &notes)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Insert or replace a row
//
//	var saved []model.Note
//	err = client.Upsert(ctx, "notes", note, &saved)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Soft delete a row
//
//	q = libsupa.NewQuery().Eq("id", note.ID).Eq("anonymous_user_id", anonymousUserID)
//	err = client.Update(ctx, "notes", q, map[string]any{"is_deleted": true}, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Listen row level changes
//
//	filter := libsupa.ChangeFilter{
//		Event:  libsupa.EventTypeAll,
//		Schema: "public",
//		Table:  "notes",
//		Filter: "anonymous_user_id=eq." + anonymousUserID,
//	}
//
//	sub, err := client.Subscribe(ctx, "notes-changes", filter, func(ev libsupa.ChangeEvent) {
//		fmt.Println(ev.Type, string(ev.Record))
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sub.Close()
package libsupa
