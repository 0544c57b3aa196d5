// Package classroom is a session client for a Transparent Classroom school
// portal.
//
// The portal has no stable API. This package therefore:
//   - authenticates through a cascade (Basic auth API probe, then the CSRF
//     protected sign-in form, then a fallback mode reserved for loopback
//     test hosts)
//   - resolves post listings through a primary URL, fixed fallbacks and
//     links discovered on the school page
//   - parses both JSON feeds and server-rendered HTML into the same Post shape
//
// Example usage:
//
//	client, err := classroom.NewClient(classroom.Options{
//	    Email:    "parent@example.com",
//	    Password: "secret",
//	    SchoolID: 123,
//	    ChildID:  456,
//	})
//	if err != nil {
//	    return err
//	}
//
//	state, err := client.Login(ctx)
//	if err != nil {
//	    return err
//	}
//
//	posts, err := client.FetchPosts(ctx, 1)
//
// Errors are *errors.Error values from tcphotos/pkg/errors; use errors.TypeOf
// to tell authentication, transport and parse failures apart.
package classroom
