// Package matchdex embeds the matchdex matching engine in a Go program,
// backed by Redis with the search module.
//
// The client registers profiles (structured fields plus two free-text
// fields) and answers two kinds of match queries:
//
//   - free-text: "caring, educated partner from Hyderabad" with filters
//   - profile-seeded: candidates for an existing user, with gender pairing
//     and an age window derived from the seed
//
// A minimal setup:
//
//	client, _ := matchdex.New(ctx,
//		matchdex.WithRedis("localhost:6379", ""),
//		matchdex.WithEmbedder(myEmbedder),
//		matchdex.WithVectorDimensions(1536),
//	)
//	defer client.Close()
//
//	res, _ := client.Register(ctx, matchdex.ProfileInput{
//		Age: 29, Gender: "Female", MaritalStatus: "Never Married",
//		About: "Teacher from Lucknow", PartnerPreference: "Kind and family oriented",
//	})
//	matches, _ := client.Match(ctx, matchdex.MatchRequest{UserID: res.Profile.ID, TopK: matchdex.Int(5)})
package matchdex
