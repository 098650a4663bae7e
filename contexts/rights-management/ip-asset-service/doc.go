// Package ipasset manages registered intellectual property: metadata, the
// review and publishing workflow, and the ownership split that royalty
// calculation reads through ip_asset.ownership_changed events.
package ipasset
