package common

// AccessTokenHeaderName is the gRPC metadata key carrying the access token on
// authenticated calls.
const AccessTokenHeaderName = "access_token"

// DeviceNameHeaderName is the optional gRPC metadata key a client uses to name
// the device a session is opened from.
const DeviceNameHeaderName = "x-device-name"

// RoleAdmin is the role allowed to manage other users' sessions.
const RoleAdmin = "admin"
