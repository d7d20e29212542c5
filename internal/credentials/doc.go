// Package credentials resolves Fusion credentials for a named profile.
//
// Sources are tried in order and the first one that yields both an access key
// and a secret key wins:
//
//  1. FUSION_ACCESS_KEY_ID / FUSION_SECRET_ACCESS_KEY (plus FUSION_DEFAULT_REGION
//     and FUSION_SESSION_TOKEN) from the environment.
//  2. The config and credentials INI files named by FUSION_CONFIG_FILE and
//     FUSION_SHARED_CREDENTIALS_FILE, or <dir>/config and <dir>/credentials
//     when either variable is empty.
//
// Resolution is all-or-nothing: values are never mixed between sources, and a
// file pair that carries only half of a key pair resolves to no keys at all.
package credentials
