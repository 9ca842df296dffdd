package common

import "time"

// ProfilePathPrefix is prepended to a username to build the public profile URL.
const ProfilePathPrefix = "/profile/"

// DefaultSessionTTL is how long an onboarding session lives if never completed.
const DefaultSessionTTL = 24 * time.Hour
