// Package bucket adapts an object-storage bucket of exported entity
// documents to the driver contract, using the storage client.
//
// Locators use the bucket:// scheme: bucket://<bucket>[/<prefix>]. Each
// entity lives at <prefix>/<address>.json in the canonical JSON shape,
// the same document format the filesystem export uses. Sync uploads the
// merged state and removes objects for deleted entities; Extract lists
// and downloads the whole tree.
package bucket
