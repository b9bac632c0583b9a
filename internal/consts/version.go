package consts

// Version is overwritten at build time with -ldflags.
var Version = "dev"

const AppName = "teleworker"
