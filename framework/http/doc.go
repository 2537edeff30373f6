// Package http provides Laravel-style JSON response helpers.
//
//	res := gohttp.NewResponse(w)
//	res.Success(map[string]any{"id": 1})        // 200 {"data": {...}}
//	res.Created(user)                           // 201 {"data": {...}}
//	res.Error(http.StatusConflict, "Taken.")    // 409 {"message": "Taken."}
//	res.NotFound()                              // 404 {"message": "Not found."}
//
// ServiceError turns a failed resolution into a response carrying the
// container error kind, the service and, for cycles, the dependency path.
package http
