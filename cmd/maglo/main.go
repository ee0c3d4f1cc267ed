package main

// @title                       Maglo Invoicing API
// @version                     1.0
// @description                 Invoices, payments and dashboard views for a signed-in Maglo user.
// @BasePath                    /
// @securityDefinitions.apikey  SessionCookie
// @in                          cookie
// @name                        maglo_session
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	Execute()
}
